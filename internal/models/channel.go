package models

import "time"

// ChannelProfile is the read-only public view of an account together with
// its subscription counters.
type ChannelProfile struct {
	ID                        string    `json:"id"`
	Username                  string    `json:"username"`
	FullName                  string    `json:"fullName"`
	Email                     string    `json:"email"`
	Avatar                    ImageRef  `json:"avatar"`
	CoverImage                *ImageRef `json:"coverImage,omitempty"`
	SubscriberCount           int64     `json:"subscriberCount"`
	ChannelsSubscribedToCount int64     `json:"channelsSubscribedToCount"`
	IsSubscribed              bool      `json:"isSubscribed"`
}

// VideoOwner is the subset of the owner's account shown next to a video.
type VideoOwner struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"fullName"`
	Avatar   ImageRef `json:"avatar"`
}

// WatchHistoryEntry is one video in an account's watch history.
type WatchHistoryEntry struct {
	VideoID      string     `json:"videoId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	VideoURL     string     `json:"videoUrl"`
	ThumbnailURL string     `json:"thumbnailUrl"`
	Duration     float64    `json:"duration"`
	Views        int64      `json:"views"`
	Owner        VideoOwner `json:"owner"`
	WatchedAt    time.Time  `json:"watchedAt"`
}
