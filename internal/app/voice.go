package app

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

// Voice token actions understood by the Vivox backend.
const (
	VoiceActionLogin = "login"
	VoiceActionJoin  = "join"
)

// VoiceService signs Vivox access tokens so players at a table can talk.
// Each table gets one positional channel named after its match id.
type VoiceService struct {
	secret string
	issuer string
	domain string
	ttl    time.Duration
}

// NewVoiceService creates a VoiceService. A non-positive ttl falls back to
// one hour.
func NewVoiceService(secret, issuer, domain string, ttl time.Duration) *VoiceService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &VoiceService{secret: secret, issuer: issuer, domain: domain, ttl: ttl}
}

// LoginToken signs a token that logs the user into voice.
func (s *VoiceService) LoginToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user is required")
	}
	return s.mint(userID, VoiceActionLogin, s.userURI(userID))
}

// JoinToken signs a token that admits the user to a table's voice channel.
func (s *VoiceService) JoinToken(userID, tableID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user is required")
	}
	if tableID == "" {
		return "", fmt.Errorf("table id is required for join tokens")
	}
	return s.mint(userID, VoiceActionJoin, s.channelURI(tableID))
}

func (s *VoiceService) mint(userID, action, target string) (string, error) {
	if s == nil || s.secret == "" || s.issuer == "" || s.domain == "" {
		return "", fmt.Errorf("voice config is incomplete")
	}

	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": userID,
		"exp": time.Now().Add(s.ttl).Unix(),
		"vxa": action,
		"vxi": fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Int63()),
		"f":   s.userURI(userID),
		"t":   target,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

func (s *VoiceService) userURI(userID string) string {
	return "sip:." + s.issuer + "." + userID + ".@" + s.domain
}

func (s *VoiceService) channelURI(tableID string) string {
	return "sip:confctl-g-" + tableID + "@" + s.domain
}
