package bolt

import (
	"github.com/nornicgraph/boltd/pkg/backend"
	"github.com/nornicgraph/boltd/pkg/message"
	"github.com/nornicgraph/boltd/pkg/packstream"
)

// dictToMap flattens a packstream.Dictionary into a plain map, the shape
// backend.Backend and backend.AuthValidator deal in so those packages
// never need to import packstream.
func dictToMap(d *packstream.Dictionary) map[string]any {
	out := make(map[string]any, d.Len())
	d.Range(func(k string, v any) bool {
		out[k] = v
		return true
	})
	return out
}

// mapToDict is dictToMap's inverse, used when building outgoing metadata.
func mapToDict(m map[string]any) *packstream.Dictionary {
	d := packstream.NewDictionary()
	for k, v := range m {
		d.Set(k, v)
	}
	return d
}

// sessionConfigFromHello builds a backend.SessionConfig from HELLO's
// extra dict, prior to LOGON filling in AuthContext.
func sessionConfigFromHello(extra *packstream.Dictionary, defaultsMin string, defaultsExclude []string) backend.SessionConfig {
	cfg := backend.SessionConfig{
		UserAgent:            message.String(extra, "user_agent", ""),
		DefaultDatabase:      message.String(extra, "db", ""),
		ImpersonatedUser:     message.String(extra, "imp_user", ""),
		NotificationsMinimum: defaultsMin,
		NotificationsExclude: defaultsExclude,
	}
	if v, ok := extra.Get("bolt_agent"); ok {
		if bd, ok := v.(*packstream.Dictionary); ok {
			cfg.BoltAgent = stringMap(bd)
		}
	}
	if v, ok := extra.Get("routing"); ok {
		if rd, ok := v.(*packstream.Dictionary); ok {
			cfg.RoutingContext = stringMap(rd)
		}
	}
	if min := message.String(extra, "notifications_minimum_severity", ""); min != "" {
		cfg.NotificationsMinimum = min
	}
	if excl := message.StringList(extra, "notifications_disabled_categories"); excl != nil {
		cfg.NotificationsExclude = excl
	}
	return cfg
}

func stringMap(d *packstream.Dictionary) map[string]string {
	out := make(map[string]string, d.Len())
	d.Range(func(k string, v any) bool {
		if s, ok := v.(string); ok {
			out[k] = s
		}
		return true
	})
	return out
}

// txConfigFromExtra builds a backend.TxConfig from BEGIN/RUN's extra dict.
func txConfigFromExtra(extra *packstream.Dictionary, database, impersonatedUser string) backend.TxConfig {
	cfg := backend.TxConfig{
		Bookmarks:        message.StringList(extra, "bookmarks"),
		Mode:             message.String(extra, "mode", "w"),
		Database:         message.String(extra, "db", database),
		ImpersonatedUser: message.String(extra, "imp_user", impersonatedUser),
	}
	if v, ok := extra.Get("tx_timeout"); ok {
		if n, ok := v.(int64); ok {
			cfg.Timeout = &n
		}
	}
	if v, ok := extra.Get("tx_metadata"); ok {
		if md, ok := v.(*packstream.Dictionary); ok {
			cfg.Metadata = dictToMap(md)
		}
	}
	return cfg
}

// routingTableToMeta encodes a backend.RoutingTable as SUCCESS metadata
// (Neo4j's "rt" wrapper shape).
func routingTableToMeta(rt *backend.RoutingTable) *packstream.Dictionary {
	servers := make([]any, 0, 3)
	if len(rt.Readers) > 0 {
		servers = append(servers, roleEntry("READ", rt.Readers))
	}
	if len(rt.Writers) > 0 {
		servers = append(servers, roleEntry("WRITE", rt.Writers))
	}
	if len(rt.Routers) > 0 {
		servers = append(servers, roleEntry("ROUTE", rt.Routers))
	}
	table := packstream.NewDictionary()
	table.Set("ttl", rt.TTLSeconds)
	table.Set("db", rt.Database)
	table.Set("servers", servers)
	out := packstream.NewDictionary()
	out.Set("rt", table)
	return out
}

func roleEntry(role string, addrs []string) *packstream.Dictionary {
	addrList := make([]any, len(addrs))
	for i, a := range addrs {
		addrList[i] = a
	}
	d := packstream.NewDictionary()
	d.Set("role", role)
	d.Set("addresses", addrList)
	return d
}

// summaryMetadata turns a backend.Summary plus has_more into the
// dictionary PULL/DISCARD's SUCCESS carries.
func summaryMetadata(hasMore bool, summary backend.Summary) *packstream.Dictionary {
	d := packstream.NewDictionary()
	if hasMore {
		d.Set("has_more", true)
		return d
	}
	for k, v := range summary {
		d.Set(k, v)
	}
	return d
}
