package domain

// UserRecord is the store-side profile at users/{uid}. The auth provider
// holds the canonical email and display name; this record carries the
// app-level customization.
type UserRecord struct {
	Name              string `json:"name"`
	BackgroundColor   string `json:"backgroundColor"`
	PhotoURL          string `json:"photoURL,omitempty"`
	HasProfilePicture bool   `json:"hasProfilePicture,omitempty"`
}

// Empty reports whether the record has never been written.
func (r UserRecord) Empty() bool {
	return r == (UserRecord{})
}

// Path returns the store path for uid's profile record.
func Path(uid string) string { return "users/" + uid }

// PicturePath returns the blob path for uid's profile picture.
func PicturePath(uid string) string { return "profile-pictures/" + uid }
