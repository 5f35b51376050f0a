package models

import "time"

// ImageRef points at an asset held by the media store. PublicID is the
// store-side identifier needed to remove the asset later.
type ImageRef struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// IsZero reports whether the reference points at nothing.
func (r ImageRef) IsZero() bool {
	return r.URL == "" && r.PublicID == ""
}

// Account represents a registered user stored in the accounts table.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	RefreshToken *string   `json:"-"`
	Avatar       ImageRef  `json:"avatar"`
	CoverImage   *ImageRef `json:"coverImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AssetIDs lists the public ids of every stored image owned by the account.
func (a *Account) AssetIDs() []string {
	if a == nil {
		return nil
	}
	ids := make([]string, 0, 2)
	if a.Avatar.PublicID != "" {
		ids = append(ids, a.Avatar.PublicID)
	}
	if a.CoverImage != nil && a.CoverImage.PublicID != "" {
		ids = append(ids, a.CoverImage.PublicID)
	}
	return ids
}

// View strips credentials from the account.
func (a *Account) View() *AccountView {
	if a == nil {
		return nil
	}
	return &AccountView{
		ID:         a.ID,
		Username:   a.Username,
		Email:      a.Email,
		FullName:   a.FullName,
		Avatar:     a.Avatar,
		CoverImage: a.CoverImage,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// AccountView is the outward representation of an account. It has no
// password hash or refresh token fields at all.
type AccountView struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     ImageRef  `json:"avatar"`
	CoverImage *ImageRef `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
