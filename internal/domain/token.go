package domain

// TokenResponse is the body returned by POST /auth/oauth/refresh. The refresh
// token itself also travels in an httpOnly cookie; the body copy exists for
// non-browser clients and is ignored by this library.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}
