package content

import "context"

// Totals aggregates site-wide counters for the admin dashboard.
type Totals struct {
	Posts    int64
	Views    int64
	Comments int64
}

// AnalyticsTotals returns post, view, and comment counts in one pass.
func (s *Service) AnalyticsTotals(ctx context.Context) (Totals, error) {
	var totals Totals
	if err := s.db.WithContext(ctx).Model(&Post{}).Count(&totals.Posts).Error; err != nil {
		s.logError(opAnalyticsTotals, "post_count_failed", err)
		return Totals{}, newServiceError(opAnalyticsTotals, "post_count_failed", err)
	}
	row := s.db.WithContext(ctx).Model(&Post{}).Select("COALESCE(SUM(views), 0)").Row()
	if err := row.Scan(&totals.Views); err != nil {
		s.logError(opAnalyticsTotals, "view_sum_failed", err)
		return Totals{}, newServiceError(opAnalyticsTotals, "view_sum_failed", err)
	}
	if err := s.db.WithContext(ctx).Model(&Comment{}).Count(&totals.Comments).Error; err != nil {
		s.logError(opAnalyticsTotals, "comment_count_failed", err)
		return Totals{}, newServiceError(opAnalyticsTotals, "comment_count_failed", err)
	}
	return totals, nil
}

// TopPosts returns the most viewed posts, recency breaking ties.
func (s *Service) TopPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 5
	}
	descriptor := FilterState{OrderBy: OrderByViews, Limit: limit}.Descriptor()
	posts, err := s.ListPosts(ctx, descriptor)
	if err != nil {
		return nil, newServiceError(opAnalyticsTop, "query_failed", err)
	}
	return posts, nil
}
