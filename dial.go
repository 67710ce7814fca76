package mgo

import (
	"net"
	"strconv"
	"time"
)

// DialInfo mirrors mgo's DialInfo: explicit construction knobs for callers
// who don't want to go through a bare URI string.
type DialInfo struct {
	Addrs       []string // host[:port] pairs; overrides the URI's replica list when non-empty
	Database    string
	Username    string
	Password    string
	Timeout     time.Duration
	PoolLimit   int // connections per replica; default 4
	TLSConfig   *TLSConfig
	SRVResolver SRVResolver // not consulted by Dial, DialWithTimeout or DialWithInfo; +srv URIs resolve through DefaultSRVResolver
}

// Dial connects to MongoDB using a connection URI (mongodb://, mongodb+srv://,
// or the mongo(+srv):// aliases).
func Dial(uri string) (*Session, error) {
	return DialWithTimeout(uri, 10*time.Second)
}

// DialWithTimeout is like Dial but with an explicit socket dial timeout.
func DialWithTimeout(uri string, timeout time.Duration) (*Session, error) {
	parsed, err := parseURI(uri, nil)
	if err != nil {
		return nil, err
	}
	info := DialInfo{
		Database: parsed.dbName,
		Timeout:  timeout,
	}
	return dialWithParsed(parsed, info)
}

// DialWithInfo builds a Session from an explicit DialInfo, bypassing URI
// parsing for the replica list (Addrs) while still accepting credentials
// and TLS settings as struct fields.
func DialWithInfo(info DialInfo) (*Session, error) {
	if len(info.Addrs) == 0 {
		return nil, &ConfigError{Msg: "DialInfo.Addrs must list at least one host[:port]"}
	}
	replicas := make([]Replica, 0, len(info.Addrs))
	for _, addr := range info.Addrs {
		host, port, err := splitHostPort(addr)
		if err != nil {
			return nil, err
		}
		replicas = append(replicas, Replica{Host: host, Port: port, TLS: info.TLSConfig != nil})
	}
	parsed := &parsedURI{replicas: replicas, dbName: info.Database}
	if info.Username != "" {
		parsed.credential = &Credential{
			Username: info.Username,
			Password: info.Password,
			Source:   info.Database,
		}
	}
	return dialWithParsed(parsed, info)
}

func dialWithParsed(parsed *parsedURI, info DialInfo) (*Session, error) {
	timeout := info.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	poolLimit := info.PoolLimit
	if poolLimit <= 0 {
		poolLimit = 4
	}

	credential := parsed.credential

	p, err := newPool(parsed.replicas, poolLimit, info.TLSConfig, credential, timeout)
	if err != nil {
		return nil, err
	}

	dbName := parsed.dbName
	if dbName == "" {
		dbName = "test"
	}

	return &Session{
		pool:       p,
		dbName:     dbName,
		mode:       Primary,
		safe:       &Safe{W: 1},
		credential: credential,
		owner:      true,
	}, nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = "27017"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, &ConfigError{Msg: "invalid address " + addr + ": bad port " + portStr}
	}
	return host, port, nil
}
