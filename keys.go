package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/xml"
	"math/big"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// KeyConfig declares the key material of one signing generation. Either a
// symmetric secret or an RSA key pair; asymmetric crypto is in use iff the
// secret is empty.
type KeyConfig struct {
	SymmetricSecret string
	// PublicKey and PrivateKey accept PEM or XML <RSAKeyValue> descriptions
	PublicKey  string
	PrivateKey string
	KeyID      string
}

// UseAsymmetricCrypto is derived from the secret, never configured
func (c KeyConfig) UseAsymmetricCrypto() bool {
	return c.SymmetricSecret == ""
}

// KeyConfigFromConfig extracts the key settings of a Config
func KeyConfigFromConfig(cfg Config) KeyConfig {
	if cfg == nil {
		return KeyConfig{}
	}
	return KeyConfig{
		SymmetricSecret: cfg.GetSigningKey(),
		PublicKey:       cfg.GetPublicKey(),
		PrivateKey:      cfg.GetPrivateKey(),
		KeyID:           cfg.GetKeyID(),
	}
}

// SecurityKey is key material bound to a JWT signing method. Material is
// []byte for HMAC, *rsa.PrivateKey for RSA signing and *rsa.PublicKey for
// RSA validation.
type SecurityKey struct {
	KeyID    string
	Method   jwt.SigningMethod
	Material any
}

// VerificationMaterial returns the material used to verify signatures
func (k SecurityKey) VerificationMaterial() any {
	if priv, ok := k.Material.(*rsa.PrivateKey); ok {
		return &priv.PublicKey
	}
	return k.Material
}

// CanSign reports whether the key holds signing material
func (k SecurityKey) CanSign() bool {
	switch k.Material.(type) {
	case []byte, *rsa.PrivateKey:
		return k.Method != nil
	default:
		return false
	}
}

// KeyBuilder turns a KeyConfig into security keys
type KeyBuilder struct {
	config KeyConfig
}

func NewKeyBuilder(cfg KeyConfig) *KeyBuilder {
	return &KeyBuilder{config: cfg}
}

// BuildSymmetricKey builds an HS256 key from the raw secret bytes
func (b *KeyBuilder) BuildSymmetricKey() (SecurityKey, error) {
	if b.config.SymmetricSecret == "" {
		return SecurityKey{}, failure(ErrMissingInput, "symmetric secret is empty", nil)
	}
	return SecurityKey{
		KeyID:    b.config.KeyID,
		Method:   jwt.SigningMethodHS256,
		Material: []byte(b.config.SymmetricSecret),
	}, nil
}

// BuildAsymmetricSigningKey builds an RS256 key from the private key
func (b *KeyBuilder) BuildAsymmetricSigningKey() (SecurityKey, error) {
	if strings.TrimSpace(b.config.PrivateKey) == "" {
		return SecurityKey{}, failure(ErrMissingInput, "private key is required for signing", nil)
	}
	priv, err := ParseRSAPrivateKey(b.config.PrivateKey)
	if err != nil {
		return SecurityKey{}, err
	}
	return SecurityKey{
		KeyID:    b.config.KeyID,
		Method:   jwt.SigningMethodRS256,
		Material: priv,
	}, nil
}

// BuildAsymmetricValidationKey builds an RS256 key from the public key
func (b *KeyBuilder) BuildAsymmetricValidationKey() (SecurityKey, error) {
	if strings.TrimSpace(b.config.PublicKey) == "" {
		return SecurityKey{}, failure(ErrMissingInput, "public key is required for validation", nil)
	}
	pub, err := ParseRSAPublicKey(b.config.PublicKey)
	if err != nil {
		return SecurityKey{}, err
	}
	return SecurityKey{
		KeyID:    b.config.KeyID,
		Method:   jwt.SigningMethodRS256,
		Material: pub,
	}, nil
}

// BuildSigningKey picks the symmetric or asymmetric signing key
func (b *KeyBuilder) BuildSigningKey() (SecurityKey, error) {
	if b.config.UseAsymmetricCrypto() {
		return b.BuildAsymmetricSigningKey()
	}
	return b.BuildSymmetricKey()
}

// BuildValidationSigningKey picks the symmetric or asymmetric validation key
func (b *KeyBuilder) BuildValidationSigningKey() (SecurityKey, error) {
	if b.config.UseAsymmetricCrypto() {
		return b.BuildAsymmetricValidationKey()
	}
	return b.BuildSymmetricKey()
}

type rsaKeyValue struct {
	XMLName  xml.Name `xml:"RSAKeyValue"`
	Modulus  string   `xml:"Modulus"`
	Exponent string   `xml:"Exponent"`
	P        string   `xml:"P"`
	Q        string   `xml:"Q"`
	DP       string   `xml:"DP"`
	DQ       string   `xml:"DQ"`
	InverseQ string   `xml:"InverseQ"`
	D        string   `xml:"D"`
}

func isXMLKey(desc string) bool {
	return strings.HasPrefix(strings.TrimSpace(desc), "<")
}

// ParseRSAPrivateKey parses a PEM (PKCS1 or PKCS8) or XML <RSAKeyValue>
// private key description
func ParseRSAPrivateKey(desc string) (*rsa.PrivateKey, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil, failure(ErrMissingInput, "private key is empty", nil)
	}

	if !isXMLKey(desc) {
		priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(desc))
		if err != nil {
			return nil, failure(ErrInvalidKeyMaterial, "private key is not a valid PEM RSA key", map[string]any{
				"format": "pem",
			})
		}
		return priv, nil
	}

	kv, err := decodeRSAKeyValue(desc, "private")
	if err != nil {
		return nil, err
	}

	n, e, err := kv.publicParts("private")
	if err != nil {
		return nil, err
	}

	parts := map[string]string{"D": kv.D, "P": kv.P, "Q": kv.Q}
	values := make(map[string]*big.Int, len(parts))
	for name, raw := range parts {
		v, err := decodeXMLInt(raw)
		if err != nil {
			return nil, failure(ErrInvalidKeyMaterial, "private key XML has an invalid "+name+" element", map[string]any{
				"format":  "xml",
				"element": name,
			})
		}
		values[name] = v
	}

	priv := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: e},
		D:         values["D"],
		Primes:    []*big.Int{values["P"], values["Q"]},
	}

	if err := priv.Validate(); err != nil {
		return nil, failure(ErrInvalidKeyMaterial, "private key XML does not describe a consistent RSA key", map[string]any{
			"format": "xml",
		})
	}
	priv.Precompute()

	return priv, nil
}

// ParseRSAPublicKey parses a PEM (PKIX, PKCS1 or certificate) or XML
// <RSAKeyValue> public key description. Private XML descriptions are
// accepted and reduced to their public half.
func ParseRSAPublicKey(desc string) (*rsa.PublicKey, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil, failure(ErrMissingInput, "public key is empty", nil)
	}

	if !isXMLKey(desc) {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(desc))
		if err != nil {
			return nil, failure(ErrInvalidKeyMaterial, "public key is not a valid PEM RSA key", map[string]any{
				"format": "pem",
			})
		}
		return pub, nil
	}

	kv, err := decodeRSAKeyValue(desc, "public")
	if err != nil {
		return nil, err
	}

	n, e, err := kv.publicParts("public")
	if err != nil {
		return nil, err
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}

func decodeRSAKeyValue(desc, class string) (*rsaKeyValue, error) {
	kv := &rsaKeyValue{}
	if err := xml.Unmarshal([]byte(desc), kv); err != nil {
		return nil, failure(ErrInvalidKeyMaterial, class+" key is not a valid RSAKeyValue XML document", map[string]any{
			"format": "xml",
		})
	}
	return kv, nil
}

func (kv *rsaKeyValue) publicParts(class string) (*big.Int, int, error) {
	n, err := decodeXMLInt(kv.Modulus)
	if err != nil {
		return nil, 0, failure(ErrInvalidKeyMaterial, class+" key XML has an invalid Modulus element", map[string]any{
			"format":  "xml",
			"element": "Modulus",
		})
	}

	e, err := decodeXMLInt(kv.Exponent)
	if err != nil || !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, 0, failure(ErrInvalidKeyMaterial, class+" key XML has an invalid Exponent element", map[string]any{
			"format":  "xml",
			"element": "Exponent",
		})
	}

	return n, int(e.Int64()), nil
}

func decodeXMLInt(raw string) (*big.Int, error) {
	raw = strings.Join(strings.Fields(raw), "")
	if raw == "" {
		return nil, ErrMissingInput
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(raw)
		if err != nil {
			return nil, err
		}
	}

	v := new(big.Int).SetBytes(data)
	if v.Sign() <= 0 {
		return nil, ErrInvalidKeyMaterial
	}
	return v, nil
}

// EncodeRSAPrivateKeyXML renders priv as an XML <RSAKeyValue> document
func EncodeRSAPrivateKeyXML(priv *rsa.PrivateKey) (string, error) {
	if priv == nil || len(priv.Primes) < 2 {
		return "", failure(ErrMissingInput, "private key is empty", nil)
	}
	priv.Precompute()

	enc := func(v *big.Int) string {
		return base64.StdEncoding.EncodeToString(v.Bytes())
	}

	kv := rsaKeyValue{
		Modulus:  enc(priv.N),
		Exponent: enc(big.NewInt(int64(priv.E))),
		P:        enc(priv.Primes[0]),
		Q:        enc(priv.Primes[1]),
		DP:       enc(priv.Precomputed.Dp),
		DQ:       enc(priv.Precomputed.Dq),
		InverseQ: enc(priv.Precomputed.Qinv),
		D:        enc(priv.D),
	}

	out, err := xml.Marshal(kv)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
