package settings

// siteSettingsRowID pins the site settings to a single row.
const siteSettingsRowID = 1

// SiteSettings is the singleton row of site-wide configuration.
type SiteSettings struct {
	ID               int64  `gorm:"column:id;primaryKey"`
	SiteTitle        string `gorm:"column:site_title;size:320;not null;default:''"`
	Tagline          string `gorm:"column:tagline;size:512;not null;default:''"`
	PostsPerPage     int    `gorm:"column:posts_per_page;not null;default:10"`
	CommentsEnabled  bool   `gorm:"column:comments_enabled;not null;default:true"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (SiteSettings) TableName() string {
	return "site_settings"
}

// UserSettings holds one row of dashboard preferences per admin user.
type UserSettings struct {
	UserID             string `gorm:"column:user_id;primaryKey;size:190;not null"`
	DisplayName        string `gorm:"column:display_name;size:320;not null;default:''"`
	EmailNotifications bool   `gorm:"column:email_notifications;not null;default:true"`
	UpdatedAtSeconds   int64  `gorm:"column:updated_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (UserSettings) TableName() string {
	return "user_settings"
}

// PostDefaults holds the per-user defaults applied to the post editor.
type PostDefaults struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Author           string `gorm:"column:author;size:190;not null;default:''"`
	Category         string `gorm:"column:category;size:190;not null;default:''"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (PostDefaults) TableName() string {
	return "post_defaults"
}
