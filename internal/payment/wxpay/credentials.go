package wxpay

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wechatpay-apiv3/wechatpay-go/utils"
	"golang.org/x/crypto/pkcs12"
)

// Credentials 商户凭据，构造后只读
type Credentials struct {
	AppID      string
	MchID      string
	PartnerKey string
	// CertPEM / KeyPEM 仅退款与企业付款类接口需要
	CertPEM []byte
	KeyPEM  []byte
}

// CertConfig 证书文件位置
type CertConfig struct {
	CertPath    string
	KeyPath     string
	P12Path     string
	P12Password string
}

// HasCertificate 是否配置了客户端证书
func (c Credentials) HasCertificate() bool {
	return len(c.CertPEM) > 0 && len(c.KeyPEM) > 0
}

func (c Credentials) clone() Credentials {
	c.AppID = strings.TrimSpace(c.AppID)
	c.MchID = strings.TrimSpace(c.MchID)
	c.PartnerKey = strings.TrimSpace(c.PartnerKey)
	c.CertPEM = bytes.Clone(c.CertPEM)
	c.KeyPEM = bytes.Clone(c.KeyPEM)
	return c
}

func (c Credentials) validate() error {
	if c.AppID == "" {
		return fmt.Errorf("%w: app_id is required", ErrConfigInvalid)
	}
	if c.MchID == "" {
		return fmt.Errorf("%w: mch_id is required", ErrConfigInvalid)
	}
	if c.PartnerKey == "" {
		return fmt.Errorf("%w: partner_key is required", ErrConfigInvalid)
	}
	if (len(c.CertPEM) > 0) != (len(c.KeyPEM) > 0) {
		return fmt.Errorf("%w: cert and key must be configured together", ErrConfigInvalid)
	}
	return nil
}

// LoadCertificate 读取客户端证书，返回 PEM 编码的证书与私钥
// 未配置任何路径时返回空值。PKCS#12 密码缺省为商户号。
func LoadCertificate(cfg CertConfig, mchID string) (certPEM []byte, keyPEM []byte, err error) {
	certPath := strings.TrimSpace(cfg.CertPath)
	keyPath := strings.TrimSpace(cfg.KeyPath)
	p12Path := strings.TrimSpace(cfg.P12Path)

	switch {
	case certPath != "" || keyPath != "":
		if certPath == "" || keyPath == "" {
			return nil, nil, fmt.Errorf("%w: cert_path and key_path must be configured together", ErrConfigInvalid)
		}
		certPEM, err = os.ReadFile(certPath)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: read cert failed: %v", ErrConfigInvalid, err)
		}
		keyPEM, err = os.ReadFile(keyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: read key failed: %v", ErrConfigInvalid, err)
		}
		return certPEM, keyPEM, nil
	case p12Path != "":
		data, err := os.ReadFile(p12Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: read p12 failed: %v", ErrConfigInvalid, err)
		}
		password := cfg.P12Password
		if password == "" {
			password = strings.TrimSpace(mchID)
		}
		return decodePKCS12(data, password)
	default:
		return nil, nil, nil
	}
}

func decodePKCS12(data []byte, password string) ([]byte, []byte, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode p12 failed: %v", ErrConfigInvalid, err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: marshal p12 key failed: %v", ErrConfigInvalid, err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// clientCertificate 解析证书对，返回 TLS 证书与证书序列号
func clientCertificate(certPEM, keyPEM []byte, now time.Time) (tls.Certificate, string, error) {
	leaf, err := utils.LoadCertificate(string(certPEM))
	if err != nil {
		return tls.Certificate{}, "", fmt.Errorf("%w: parse cert failed: %v", ErrConfigInvalid, err)
	}
	if now.After(leaf.NotAfter) {
		return tls.Certificate{}, "", fmt.Errorf("%w: cert expired at %s", ErrConfigInvalid, leaf.NotAfter.Format(time.RFC3339))
	}
	if _, err := utils.LoadPrivateKey(string(keyPEM)); err != nil {
		return tls.Certificate{}, "", fmt.Errorf("%w: parse key failed: %v", ErrConfigInvalid, err)
	}
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, "", fmt.Errorf("%w: cert and key mismatch: %v", ErrConfigInvalid, err)
	}
	pair.Leaf = leaf
	return pair, utils.GetCertificateSerialNumber(*leaf), nil
}
