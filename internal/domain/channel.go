package domain

import "time"

// Platform identifies the client a delivery channel belongs to.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// DeliveryChannel is the push token a user's device registered.
type DeliveryChannel struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token" validate:"required,max=512"`
	Platform  Platform  `json:"platform" validate:"required,oneof=ios android web"`
	UpdatedAt time.Time `json:"updated_at"`
}
