// Package config backs cmd/tls12ctl (SPEC_FULL §10): the engine itself
// never reads this, it takes explicit Go values, consistent with the
// sans-I/O contract. This is CLI-only configuration, loaded the way the
// teacher's config package is — a struct with mapstructure/yaml tags,
// populated from a default YAML document and layered with flags/env via
// viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vlet/tls12/internal/wire"
)

// Config is the tls12ctl configuration surface.
type Config struct {
	// Listen is the address the serve command binds, e.g. "127.0.0.1:8443".
	Listen string `yaml:"listen" mapstructure:"listen"`

	// Dial is the address the dial command connects to.
	Dial string `yaml:"dial" mapstructure:"dial"`

	// ServerName is the SNI name the dial command offers. The serve
	// command does not read it.
	ServerName string `yaml:"serverName" mapstructure:"serverName"`

	// CertFile/KeyFile are PEM paths for the serve command's certificate.
	CertFile string `yaml:"certFile" mapstructure:"certFile"`
	KeyFile  string `yaml:"keyFile" mapstructure:"keyFile"`

	// CipherSuites is the client's ClientHello offer order, by name
	// (e.g. "TLS_RSA_WITH_AES_128_CBC_SHA"). Empty uses the engine default.
	CipherSuites []string `yaml:"cipherSuites" mapstructure:"cipherSuites"`

	// SessionCacheSize bounds the client/server session LRU.
	SessionCacheSize int `yaml:"sessionCacheSize" mapstructure:"sessionCacheSize"`

	// Debug enables verbose (debug-level) logging.
	Debug bool `yaml:"debug" mapstructure:"debug"`

	// DisableANSI turns off colored CLI output (fatih/color honors this
	// via color.NoColor).
	DisableANSI bool `yaml:"disableANSI" mapstructure:"disableANSI"`
}

// defaultConfig seeds viper before flags/env are layered on top, mirroring
// the teacher's GetDefaultConfig/SetDefaultConfig pair.
var defaultConfig = `
listen: "127.0.0.1:8443"
dial: "127.0.0.1:8443"
serverName: "localhost"
certFile: ""
keyFile: ""
cipherSuites: []
sessionCacheSize: 1024
debug: false
disableANSI: false
`

// Load builds a Config from the compiled-in default, environment
// variables prefixed TLS12CTL_, and any flags already bound to v.
func Load(v *viper.Viper) (*Config, error) {
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		return nil, fmt.Errorf("config: read default: %w", err)
	}
	v.SetEnvPrefix("TLS12CTL")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// BindFlags registers the subset of Config a cobra command exposes as
// flags, and binds them into v so Load picks up overrides.
func BindFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("listen", "", "address to listen on (serve)")
	flags.String("dial", "", "address to connect to (dial)")
	flags.String("server-name", "", "SNI server name")
	flags.String("cert-file", "", "PEM certificate path (serve)")
	flags.String("key-file", "", "PEM private key path (serve)")
	flags.StringSlice("cipher-suites", nil, "client cipher suite offer order, by name (e.g. TLS_RSA_WITH_AES_128_CBC_SHA)")
	flags.Int("session-cache-size", 0, "bounded session cache size (0 = default)")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("no-ansi", false, "disable colored output")

	_ = v.BindPFlag("listen", flags.Lookup("listen"))
	_ = v.BindPFlag("dial", flags.Lookup("dial"))
	_ = v.BindPFlag("serverName", flags.Lookup("server-name"))
	_ = v.BindPFlag("certFile", flags.Lookup("cert-file"))
	_ = v.BindPFlag("keyFile", flags.Lookup("key-file"))
	_ = v.BindPFlag("cipherSuites", flags.Lookup("cipher-suites"))
	_ = v.BindPFlag("sessionCacheSize", flags.Lookup("session-cache-size"))
	_ = v.BindPFlag("debug", flags.Lookup("debug"))
	_ = v.BindPFlag("disableANSI", flags.Lookup("no-ansi"))
}

// cipherSuiteByName maps the names SPEC_FULL's cipher-suite table lists to
// their wire codes, for --cipher-suites.
var cipherSuiteByName = map[string]wire.CipherSuite{
	"TLS_RSA_WITH_NULL_SHA":        wire.TLSRSAWithNullSHA,
	"TLS_RSA_WITH_NULL_SHA256":     wire.TLSRSAWithNullSHA256,
	"TLS_RSA_WITH_AES_128_CBC_SHA": wire.TLSRSAWithAES128CBCSHA,
}

// ResolveCipherSuites translates Config.CipherSuites into wire codes,
// preserving offer order. An unrecognized name is an error, not a silent
// drop, so a typo in a config file surfaces immediately.
func (c *Config) ResolveCipherSuites() ([]wire.CipherSuite, error) {
	if len(c.CipherSuites) == 0 {
		return nil, nil
	}
	out := make([]wire.CipherSuite, 0, len(c.CipherSuites))
	for _, name := range c.CipherSuites {
		cs, ok := cipherSuiteByName[name]
		if !ok {
			return nil, fmt.Errorf("config: unrecognized cipher suite %q", name)
		}
		out = append(out, cs)
	}
	return out, nil
}
