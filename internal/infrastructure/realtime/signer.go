package realtime

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrBadSignature is returned when a subscription token does not match.
var ErrBadSignature = errors.New("realtime: invalid channel authorization")

// ChannelSigner issues and checks subscription tokens for private channels.
// A token has the form "<key>:<hex hmac-sha256(secret, socketID:channel[:channelData])>".
type ChannelSigner struct {
	key    string
	secret []byte
}

func NewChannelSigner(key, secret string) (*ChannelSigner, error) {
	if secret == "" {
		return nil, errors.New("realtime: channel secret is required")
	}
	if key == "" {
		key = "app"
	}
	return &ChannelSigner{key: key, secret: []byte(secret)}, nil
}

// Sign returns the token that lets socketID subscribe to channel.
func (s *ChannelSigner) Sign(socketID, channel, channelData string) string {
	return s.key + ":" + hex.EncodeToString(s.mac(socketID, channel, channelData))
}

// Verify checks a token produced by Sign in constant time.
func (s *ChannelSigner) Verify(socketID, channel, channelData, token string) error {
	key, sig, ok := strings.Cut(token, ":")
	if !ok || key != s.key {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal(got, s.mac(socketID, channel, channelData)) {
		return ErrBadSignature
	}
	return nil
}

func (s *ChannelSigner) mac(socketID, channel, channelData string) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(socketID + ":" + channel))
	if channelData != "" {
		m.Write([]byte(":" + channelData))
	}
	return m.Sum(nil)
}
