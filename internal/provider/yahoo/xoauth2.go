package yahoo

import "github.com/emersion/go-sasl"

// xoauth2Client implements the XOAUTH2 SASL mechanism, which go-sasl does not
// ship. The initial response carries the username and bearer token; on error
// the server sends a JSON challenge that must be answered with an empty line
// before it returns the final SMTP reply.
type xoauth2Client struct {
	username string
	token    string
}

func newXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
