package common

// AccessTokenHeaderName is the gRPC metadata key, websocket query parameter
// and cookie name used to carry the access token.
const AccessTokenHeaderName = "access_token"

const (
	// MaxHandleLength bounds both stored handles and search queries.
	MaxHandleLength = 20
	// MaxPasswordLength bounds signup and login passwords.
	MaxPasswordLength = 30
	// MaxEmailLength bounds the optional signup email.
	MaxEmailLength = 99
	// PreviewLength is the number of characters kept in a chat preview.
	PreviewLength = 10
)
