package mgo

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Replica is one addressable MongoDB endpoint: host, port, and whether the
// pool should dial it over TLS.
type Replica struct {
	Host string
	Port int
	TLS  bool
}

func (r Replica) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// parsedURI is the result of parsing a connection string: the replica set
// to dial, the credential (if any), and the default database name.
type parsedURI struct {
	replicas   []Replica
	credential *Credential
	dbName     string
}

// SRVResolver looks up the DNS SRV records backing a mongodb+srv:// host,
// returning one Replica per record. It is a pluggable collaborator so
// callers can substitute a custom DNS resolver.
type SRVResolver interface {
	ResolveSRV(service, proto, name string) ([]Replica, error)
}

type defaultSRVResolver struct{}

func (defaultSRVResolver) ResolveSRV(service, proto, name string) ([]Replica, error) {
	dnsServer := os.Getenv("DNS_SERVER")
	if dnsServer == "" {
		dnsServer = "8.8.8.8"
	}
	resolver := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(dnsServer, "53"))
		},
	}
	_, addrs, err := resolver.LookupSRV(context.Background(), service, proto, name)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("SRV lookup for %s failed: %v", name, err)}
	}
	replicas := make([]Replica, 0, len(addrs))
	for _, a := range addrs {
		replicas = append(replicas, Replica{
			Host: strings.TrimSuffix(a.Target, "."),
			Port: int(a.Port),
			TLS:  true,
		})
	}
	return replicas, nil
}

// DefaultSRVResolver is the resolver parseURI falls back to when handed a
// nil resolver, which is what Dial and DialWithTimeout pass.
var DefaultSRVResolver SRVResolver = defaultSRVResolver{}

// parseURI accepts mongodb://, mongodb+srv://, and the mongo://, mongo+srv://
// aliases. Schemes outside that set fail with *ConfigError.
func parseURI(uri string, resolver SRVResolver) (*parsedURI, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid URI %q: %v", uri, err)}
	}

	scheme := u.Scheme
	srv := false
	switch scheme {
	case "mongodb":
	case "mongo":
	case "mongodb+srv":
		srv = true
	case "mongo+srv":
		srv = true
	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("unsupported URI scheme %q", scheme)}
	}

	result := &parsedURI{}

	if u.User != nil {
		user := u.User.Username()
		pass, _ := u.User.Password()
		result.credential = &Credential{Username: user, Password: pass}
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	result.dbName = dbName
	if result.credential != nil {
		if dbName != "" {
			result.credential.Source = dbName
		} else {
			result.credential.Source = "admin"
		}
	}

	if srv {
		if resolver == nil {
			resolver = DefaultSRVResolver
		}
		host := u.Hostname()
		if host == "" {
			return nil, &ConfigError{Msg: "mongodb+srv URI requires a host"}
		}
		replicas, err := resolver.ResolveSRV("mongodb", "tcp", host)
		if err != nil {
			return nil, err
		}
		if len(replicas) == 0 {
			return nil, &ConfigError{Msg: fmt.Sprintf("no SRV records found for %s", host)}
		}
		result.replicas = replicas
		return result, nil
	}

	host := u.Hostname()
	if host == "" {
		return nil, &ConfigError{Msg: "URI requires a host"}
	}
	port := 27017
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("invalid port %q", p)}
		}
		port = n
	}
	result.replicas = []Replica{{Host: host, Port: port, TLS: false}}
	return result, nil
}
