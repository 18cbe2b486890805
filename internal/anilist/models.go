package anilist

// User is an AniList account, as returned by the Viewer and User queries.
type User struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Avatar      *Avatar `json:"avatar,omitempty"`
	BannerImage string  `json:"bannerImage,omitempty"`
}

// Avatar holds the user's avatar image URLs.
type Avatar struct {
	Large  string `json:"large,omitempty"`
	Medium string `json:"medium,omitempty"`
}

// MediaTitle holds the alternative titles of a media entry.
type MediaTitle struct {
	Romaji  string `json:"romaji,omitempty"`
	English string `json:"english,omitempty"`
	Native  string `json:"native,omitempty"`
}

// Preferred returns the first non-empty title, romaji first.
func (t MediaTitle) Preferred() string {
	switch {
	case t.Romaji != "":
		return t.Romaji
	case t.English != "":
		return t.English
	default:
		return t.Native
	}
}

// CoverImage holds the cover art URLs of a media entry.
type CoverImage struct {
	Large  string `json:"large,omitempty"`
	Medium string `json:"medium,omitempty"`
}

// Media is an anime (or manga) record.
type Media struct {
	ID           int         `json:"id"`
	Title        MediaTitle  `json:"title"`
	Description  string      `json:"description,omitempty"`
	Episodes     *int        `json:"episodes,omitempty"`
	Duration     *int        `json:"duration,omitempty"`
	Genres       []string    `json:"genres,omitempty"`
	AverageScore *float64    `json:"averageScore,omitempty"`
	CoverImage   *CoverImage `json:"coverImage,omitempty"`
	BannerImage  string      `json:"bannerImage,omitempty"`
	Status       string      `json:"status,omitempty"`
	Format       string      `json:"format,omitempty"`
}

// MediaListEntry is one row of a user's anime list.
type MediaListEntry struct {
	ID       int             `json:"id"`
	MediaID  int             `json:"mediaId"`
	Status   MediaListStatus `json:"status"`
	Score    *float64        `json:"score,omitempty"`
	Progress *int            `json:"progress,omitempty"`

	// UpdatedAt is a Unix timestamp in seconds.
	UpdatedAt int64 `json:"updatedAt"`

	Media *Media `json:"media,omitempty"`
}

// PageInfo is AniList's pagination envelope.
type PageInfo struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"currentPage"`
	LastPage    int  `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
	PerPage     int  `json:"perPage"`
}
