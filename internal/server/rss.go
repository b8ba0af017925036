package server

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/content"
)

const rssItemLimit = 50

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

func (h *httpHandler) handleRSS(c *gin.Context) {
	site, err := h.settings.Site(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load site settings for rss", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}

	descriptor := content.FilterState{Limit: rssItemLimit}.Descriptor()
	posts, err := h.content.ListPosts(c.Request.Context(), descriptor)
	if err != nil {
		h.logger.Error("failed to list posts for rss", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}

	items := make([]rssItem, 0, len(posts))
	for _, post := range posts {
		postURL := h.publicBaseURL + "/posts/" + post.Slug
		items = append(items, rssItem{
			Title:       post.Title,
			Link:        postURL,
			Description: post.Excerpt,
			PubDate:     time.Unix(post.CreatedAtSeconds, 0).UTC().Format(time.RFC1123Z),
			GUID:        postURL,
		})
	}

	document := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       site.SiteTitle,
			Link:        h.publicBaseURL,
			Description: site.Tagline,
			Items:       items,
		},
	}

	body, err := xml.MarshalIndent(document, "", "  ")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", append([]byte(xml.Header), body...))
}
