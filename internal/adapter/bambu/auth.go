package bambu

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
)

const (
	// cloudBroker is the fixed cloud MQTT endpoint.
	cloudBroker = "ssl://us.mqtt.bambulab.com:8883"

	// lanUsername is the fixed local-mode MQTT username.
	lanUsername = "bblp"

	// mqttPort is the broker port in both modes.
	mqttPort = 8883
)

// credentials is the resolved broker endpoint, login, and trust policy
// for one connection attempt.
type credentials struct {
	broker   string
	username string
	password string
	trust    domain.TrustPolicy
}

// resolveCredentials derives broker credentials from the printer config.
//
// Cloud mode decodes the bearer token's claims to obtain the username
// and uses the raw token as the password; the transport validates the
// server certificate against the system roots. LAN mode uses the fixed
// local username plus the per-device access code; certificate
// validation is disabled because LAN firmware presents a self-signed
// certificate. The Insecure trust policy is scoped to LAN hosts only.
func resolveCredentials(cfg domain.PrinterConfig, cloudToken string) (credentials, error) {
	if cfg.Cloud {
		username, err := usernameFromToken(cloudToken)
		if err != nil {
			return credentials{}, err
		}
		return credentials{
			broker:   cloudBroker,
			username: username,
			password: cloudToken,
			trust:    domain.TrustSystemRoots,
		}, nil
	}

	return credentials{
		broker:   fmt.Sprintf("ssl://%s:%d", cfg.Host, mqttPort),
		username: lanUsername,
		password: cfg.AccessCode,
		trust:    domain.TrustInsecure,
	}, nil
}

// usernameFromToken extracts the username claim from the cloud bearer
// token. The token was issued by the external sign-in flow; its
// signature is verified there, not here.
func usernameFromToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing cloud token", domain.ErrCredentials)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCredentials, err)
	}

	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return "", fmt.Errorf("%w: token has no username claim", domain.ErrCredentials)
	}
	return username, nil
}
