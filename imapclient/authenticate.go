package imapclient

import (
	"encoding/base64"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/sqs/go-xoauth2"

	"github.com/driftmail/go-imap"
)

// SASLClient is the client side of a SASL mechanism, as defined by
// github.com/emersion/go-sasl.
type SASLClient = sasl.Client

// NewPlainSASLClient returns a SASL PLAIN client.
func NewPlainSASLClient(username, password string) SASLClient {
	return sasl.NewPlainClient("", username, password)
}

// NewOAuthBearerSASLClient returns an OAUTHBEARER client (RFC 7628). The
// token is passed through opaque; obtaining and refreshing it is the
// caller's business.
func NewOAuthBearerSASLClient(username, token string) SASLClient {
	return sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: username,
		Token:    token,
	})
}

// NewXOAuth2SASLClient returns a client for the pre-standard XOAUTH2
// mechanism used by Gmail and Outlook.
func NewXOAuth2SASLClient(username, token string) SASLClient {
	return &xoauth2Client{username: username, token: token}
}

type xoauth2Client struct {
	username, token string
	failed          bool
}

func (c *xoauth2Client) Start() (mech string, ir []byte, err error) {
	// XOAuth2String returns the base64 form; the SASL layer encodes on the
	// wire itself, so decode back to the raw initial response.
	ir, err = base64.StdEncoding.DecodeString(xoauth2.XOAuth2String(c.username, c.token))
	return "XOAUTH2", ir, err
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	// On failure the server sends its error details as a challenge and
	// expects an empty response before issuing the tagged NO.
	if c.failed {
		return nil, fmt.Errorf("imapclient: xoauth2: authentication failed: %s", challenge)
	}
	c.failed = true
	return []byte{}, nil
}

// authenticate runs the AUTHENTICATE exchange. The encoder mutex is held
// for the whole conversation: continuation responses are raw lines, not
// commands.
func (c *conn) authenticate(saslClient SASLClient) error {
	mech, initialResp, err := saslClient.Start()
	if err != nil {
		return err
	}

	cmd := &Command{}
	enc := c.beginCommand("AUTHENTICATE", cmd)
	if cmd.err != nil {
		enc.end()
		return cmd.err
	}
	enc.SP().Atom(mech)
	if initialResp != nil && c.hasCap(imap.CapSASLIR) {
		resp := "="
		if len(initialResp) > 0 {
			resp = base64.StdEncoding.EncodeToString(initialResp)
		}
		enc.SP().Atom(resp)
		initialResp = nil
	}
	contReq := c.registerContReq(cmd.base())
	enc.flush()

	for {
		challenge, err := contReq.Wait()
		if err != nil {
			// The command completed; a cancelled continuation request is
			// how completion reaches us here.
			break
		}

		var resp []byte
		var saslErr error
		if challenge == "" && initialResp != nil {
			// Server asked for the initial response the old way.
			resp, initialResp = initialResp, nil
		} else {
			decoded, err := base64.StdEncoding.DecodeString(challenge)
			if err != nil {
				saslErr = fmt.Errorf("imapclient: malformed SASL challenge: %v", err)
			} else {
				resp, saslErr = saslClient.Next(decoded)
			}
		}

		contReq = c.registerContReq(cmd.base())
		if saslErr != nil {
			// "*" aborts the exchange; the server answers with a tagged
			// BAD.
			c.bw.WriteString("*\r\n")
		} else {
			c.bw.WriteString(base64.StdEncoding.EncodeToString(resp))
			c.bw.WriteString("\r\n")
		}
		if err := c.bw.Flush(); err != nil {
			c.unregisterContReq(contReq)
			c.encMutex.Unlock()
			return err
		}
	}

	c.encMutex.Unlock()
	return cmd.Wait()
}
