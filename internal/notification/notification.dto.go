package notification

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// ValidPlatform reports whether p is a platform FCM tokens can come from.
func ValidPlatform(p string) bool {
	switch p {
	case "ios", "android", "web":
		return true
	}
	return false
}
