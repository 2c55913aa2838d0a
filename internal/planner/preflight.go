package planner

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes はリソースURLとして許可されるスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は公開リソースとして不適切なネットワーク範囲。
// プライベートIPやループバックを指すURLは他の閲覧者が開けないため、
// 登録前に拒否する。パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927)
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// PublicURLPreflight はリソースURLが公開ホストを指すことを検証する。
// 静的検証に加えて、safeurlのクライアントで実際に到達可能か確認する。
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスも検証するため、
// プライベートIPへ解決されるホスト名も拒否される。
type PublicURLPreflight struct {
	client *http.Client
	// Reachability はtrueの場合、静的検証の後にHEADリクエストで到達確認を行う。
	Reachability bool
}

// NewPreflight はPublicURLPreflightを生成する。
func NewPreflight(timeout time.Duration) *PublicURLPreflight {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &PublicURLPreflight{client: safeurl.Client(config).Client}
}

// ValidateURL はURLが公開リソースとして登録可能か検証する。
// スキーム、ホスト、IPアドレスの静的検証を行い、
// Reachabilityが有効な場合はsafeurlクライアントでHEADリクエストを送る。
func (p *PublicURLPreflight) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URLが空です")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URLとして解析できません: %w", err)
	}

	schemeOK := false
	for _, s := range allowedSchemes {
		if parsed.Scheme == s {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return fmt.Errorf("許可されていないスキームです: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("ホストがありません")
	}

	// ホストがIPアドレスリテラルならブロック範囲を静的に検証する。
	// ホスト名の場合はDNS解決後のIPがsafeurlクライアント側で検証される。
	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("非公開ネットワークのアドレスです: %s", host)
			}
		}
	}

	if p.Reachability {
		resp, err := p.client.Head(rawURL)
		if err != nil {
			return fmt.Errorf("URLに到達できません: %w", err)
		}
		resp.Body.Close()
	}
	return nil
}
