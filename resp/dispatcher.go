package resp

import (
	"strconv"
	"strings"

	"github.com/chronos-cache/chronos"
)

// ChangeObserver is the narrow slice of *chronos.TTLController that the
// SET path needs to feed the volatility estimator (spec §4.6). Declared
// here so Dispatcher doesn't have to import the controller when TTL is
// disabled and no observer is wired.
type ChangeObserver interface {
	ObserveChange(key string)
}

// AccessObserver is the narrow slice of *chronos.Prefetcher that the GET
// and SET paths need to feed the transition map (spec §4.5 step 1). It is
// called on every GET, hit or miss, and on every SET. Declared here for the
// same reason as ChangeObserver: Dispatcher shouldn't have to import the
// full Prefetcher type when prefetching is disabled and no observer is
// wired.
type AccessObserver interface {
	RecordAccess(key string)
}

// Dispatcher executes RESP2 commands against a chronos.Store (spec §6's
// command table). Stateless and safe for concurrent use; one Dispatcher is
// shared by every connection.
type Dispatcher struct {
	store    *chronos.Store
	onChange ChangeObserver
	onAccess AccessObserver
}

// NewDispatcher builds a Dispatcher over store.
func NewDispatcher(store *chronos.Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// WithChangeObserver wires a TTL controller (or any changeObserver) so that
// every client SET that actually changes a value's content reports it to
// the volatility estimator. Internal writers — prefetch, warming, snapshot
// restore — deliberately do not call this; they fill the cache rather than
// reflect a real upstream mutation, so they must not skew TTL re-estimation.
func (d *Dispatcher) WithChangeObserver(o ChangeObserver) *Dispatcher {
	d.onChange = o
	return d
}

// WithAccessObserver wires a Prefetcher (or any AccessObserver) so that
// every client GET/SET feeds the predictive prefetcher's transition map
// (spec §4.5 step 1). Internal readers/writers that don't represent a real
// client access — the prefetcher's own background loads, warming, snapshot
// restore — deliberately do not call this.
func (d *Dispatcher) WithAccessObserver(o AccessObserver) *Dispatcher {
	d.onAccess = o
	return d
}

// Dispatch executes one command (args[0] is the verb, case-insensitive)
// and writes its RESP2 reply to w. The returned bool is false when the
// connection must be closed (a ProtocolError was written).
func (d *Dispatcher) Dispatch(w dispatchWriter, args []string) bool {
	if len(args) == 0 {
		WriteError(w, "ERR empty command")
		return true
	}
	verb := strings.ToUpper(args[0])
	switch verb {
	case "PING":
		return d.ping(w, args)
	case "GET":
		return d.get(w, args)
	case "SET":
		return d.set(w, args)
	case "DEL":
		return d.del(w, args)
	case "EXPIRE":
		return d.expire(w, args)
	case "TTL":
		return d.ttl(w, args)
	case "KEYS":
		return d.keys(w, args)
	case "FLUSHALL":
		return d.flushall(w, args)
	case "INFO":
		return d.info(w, args)
	default:
		WriteError(w, "ERR unknown command '"+args[0]+"'")
		return true
	}
}

// dispatchWriter is the minimal io.Writer seam the reply helpers need.
type dispatchWriter interface {
	Write(p []byte) (int, error)
}

func (d *Dispatcher) ping(w dispatchWriter, args []string) bool {
	if len(args) > 2 {
		WriteError(w, "ERR wrong number of arguments for 'ping' command")
		return true
	}
	if len(args) == 2 {
		WriteSimpleString(w, args[1])
		return true
	}
	WriteSimpleString(w, "PONG")
	return true
}

func (d *Dispatcher) get(w dispatchWriter, args []string) bool {
	if len(args) != 2 {
		WriteError(w, "ERR wrong number of arguments for 'get' command")
		return true
	}
	if len(args[1]) > chronos.MaxKeyBytes {
		WriteError(w, "ERR key too long")
		return true
	}
	value, ok := d.store.Get(args[1])
	if d.onAccess != nil {
		// Every completed read feeds the transition map, hit or miss (spec
		// §4.5 Contract: "advised of every completed read (hit or miss)").
		// RecordAccess also scores a pending prediction for this key,
		// gated only on the key being pending: a miss on a pending key is
		// scored the same as a hit.
		d.onAccess.RecordAccess(args[1])
	}
	if !ok {
		WriteNullBulkString(w)
		return true
	}
	WriteBulkString(w, string(value))
	return true
}

// set handles `SET key value [EX seconds | PX milliseconds]`. A PX value
// is divided by 1000 and floored to seconds (spec §6).
func (d *Dispatcher) set(w dispatchWriter, args []string) bool {
	if len(args) != 3 && len(args) != 5 {
		WriteError(w, "ERR wrong number of arguments for 'set' command")
		return true
	}
	if len(args[1]) > chronos.MaxKeyBytes {
		WriteError(w, "ERR key too long")
		return true
	}
	if len(args[2]) > chronos.MaxValueBytes {
		WriteError(w, "ERR value too large")
		return true
	}
	var ttlSeconds int64
	if len(args) == 5 {
		option := strings.ToUpper(args[3])
		n, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil || n < 0 {
			WriteError(w, "ERR value is not an integer or out of range")
			return true
		}
		switch option {
		case "EX":
			ttlSeconds = n
		case "PX":
			ttlSeconds = n / 1000
		default:
			WriteError(w, "ERR syntax error")
			return true
		}
	}
	changed := d.store.Set(args[1], []byte(args[2]), ttlSeconds, 0)
	if changed && d.onChange != nil {
		d.onChange.ObserveChange(args[1])
	}
	if d.onAccess != nil {
		d.onAccess.RecordAccess(args[1])
	}
	WriteSimpleString(w, "OK")
	return true
}

func (d *Dispatcher) del(w dispatchWriter, args []string) bool {
	if len(args) < 2 {
		WriteError(w, "ERR wrong number of arguments for 'del' command")
		return true
	}
	var removed int64
	for _, key := range args[1:] {
		if len(key) > chronos.MaxKeyBytes {
			continue
		}
		if d.store.Delete(key) {
			removed++
		}
	}
	WriteInteger(w, removed)
	return true
}

func (d *Dispatcher) expire(w dispatchWriter, args []string) bool {
	if len(args) != 3 {
		WriteError(w, "ERR wrong number of arguments for 'expire' command")
		return true
	}
	seconds, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		WriteError(w, "ERR value is not an integer or out of range")
		return true
	}
	if d.store.SetTTL(args[1], seconds) {
		WriteInteger(w, 1)
	} else {
		WriteInteger(w, 0)
	}
	return true
}

func (d *Dispatcher) ttl(w dispatchWriter, args []string) bool {
	if len(args) != 2 {
		WriteError(w, "ERR wrong number of arguments for 'ttl' command")
		return true
	}
	seconds, ok := d.store.TTL(args[1])
	if !ok {
		WriteInteger(w, -2)
		return true
	}
	WriteInteger(w, seconds)
	return true
}

func (d *Dispatcher) keys(w dispatchWriter, args []string) bool {
	if len(args) != 2 {
		WriteError(w, "ERR wrong number of arguments for 'keys' command")
		return true
	}
	pattern := args[1]
	var matches []string
	for _, key := range d.store.Keys() {
		if globMatch(pattern, key) {
			matches = append(matches, key)
		}
	}
	WriteArray(w, len(matches))
	for _, key := range matches {
		WriteBulkString(w, key)
	}
	return true
}

func (d *Dispatcher) flushall(w dispatchWriter, args []string) bool {
	if len(args) != 1 {
		WriteError(w, "ERR wrong number of arguments for 'flushall' command")
		return true
	}
	d.store.Clear()
	WriteSimpleString(w, "OK")
	return true
}

func (d *Dispatcher) info(w dispatchWriter, args []string) bool {
	if len(args) != 1 {
		WriteError(w, "ERR wrong number of arguments for 'info' command")
		return true
	}
	stats := d.store.Stats()
	var b strings.Builder
	b.WriteString("# Chronos\r\n")
	b.WriteString("version:" + chronos.Version + "\r\n")
	b.WriteString("segments:" + strconv.Itoa(d.store.SegmentCount()) + "\r\n")
	b.WriteString("entries:" + strconv.FormatInt(stats.EntryCount, 10) + "\r\n")
	b.WriteString("memory_used:" + strconv.FormatInt(stats.MemoryUsed, 10) + "\r\n")
	b.WriteString("memory_limit:" + strconv.FormatInt(stats.MemoryLimit, 10) + "\r\n")
	b.WriteString("hits:" + strconv.FormatInt(stats.Hits, 10) + "\r\n")
	b.WriteString("misses:" + strconv.FormatInt(stats.Misses, 10) + "\r\n")
	b.WriteString("evictions:" + strconv.FormatInt(stats.Evictions, 10) + "\r\n")
	WriteBulkString(w, b.String())
	return true
}

// globMatch reports whether key matches pattern, supporting only `*`
// (any run of characters) and `?` (exactly one character) — the two
// wildcards spec §6's KEYS command documents, deliberately narrower than
// filepath.Match's bracket-class support so a literal `[` in a key can
// never be misread as a character class.
func globMatch(pattern, key string) bool {
	// Classic iterative wildcard match: dp[i][j] = pattern[:i] matches key[:j].
	dp := make([][]bool, len(pattern)+1)
	for i := range dp {
		dp[i] = make([]bool, len(key)+1)
	}
	dp[0][0] = true
	for i := 1; i <= len(pattern); i++ {
		if pattern[i-1] == '*' {
			dp[i][0] = dp[i-1][0]
		}
	}
	for i := 1; i <= len(pattern); i++ {
		for j := 1; j <= len(key); j++ {
			switch pattern[i-1] {
			case '*':
				dp[i][j] = dp[i-1][j] || dp[i][j-1]
			case '?':
				dp[i][j] = dp[i-1][j-1]
			default:
				dp[i][j] = dp[i-1][j-1] && pattern[i-1] == key[j-1]
			}
		}
	}
	return dp[len(pattern)][len(key)]
}

