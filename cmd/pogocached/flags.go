package main

import (
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// options holds every CLI-configurable setting for both the cache engine
// and the network listener, mirroring pogocache's own flag surface
// (component M) while using pflag/yaml the way the teacher's CLI would.
type options struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLSPort     int    `yaml:"tlsport"`
	TLSCert     string `yaml:"tlscert"`
	TLSKey      string `yaml:"tlskey"`
	UnixSocket  string `yaml:"unixsocket"`
	DebugAddr   string `yaml:"debugaddr"`
	Threads     int    `yaml:"threads"`
	NShards     int    `yaml:"nshards"`
	LoadFactor  int    `yaml:"loadfactor"`
	UseCAS      bool   `yaml:"usecas"`
	NoSixpack   bool   `yaml:"nosixpack"`
	NoEvict     bool   `yaml:"noevict"`
	AllowShrink bool   `yaml:"allowshrink"`
	MaxConns    int    `yaml:"maxconns"`
	MaxMemory   int64  `yaml:"maxmemory"`
	Seed        uint64 `yaml:"seed"`
	SavePath    string `yaml:"save-path"`
	Config      string `yaml:"-"`
}

func defaultOptions() *options {
	return &options{
		Host:       "0.0.0.0",
		Port:       9401,
		DebugAddr:  ":9402",
		Threads:    4,
		NShards:    256,
		LoadFactor: 75,
		MaxConns:   1 << 20,
		MaxMemory:  0,
	}
}

// registerFlags binds every CLI flag to opts's current field values as
// defaults, so calling it again after a YAML load picks up the file's
// values as the new baseline that an explicit flag can still override.
func registerFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVar(&opts.Config, "config", opts.Config, "optional YAML config file; flags override its values")
	fs.StringVar(&opts.Host, "host", opts.Host, "listen host for the multi-protocol port")
	fs.IntVar(&opts.Port, "port", opts.Port, "listen port for RESP/Memcache/HTTP/Postgres")
	fs.IntVar(&opts.TLSPort, "tlsport", opts.TLSPort, "listen port for the TLS-wrapped variant, 0 disables it")
	fs.StringVar(&opts.TLSCert, "tlscert", opts.TLSCert, "PEM certificate file for --tlsport")
	fs.StringVar(&opts.TLSKey, "tlskey", opts.TLSKey, "PEM key file for --tlsport")
	fs.StringVar(&opts.UnixSocket, "unixsocket", opts.UnixSocket, "additional unix socket path, empty disables it")
	fs.StringVar(&opts.DebugAddr, "debugaddr", opts.DebugAddr, "listen address for /metrics and /debug/pogocache/snapshot")
	fs.IntVar(&opts.Threads, "threads", opts.Threads, "number of event loop threads")
	fs.IntVar(&opts.NShards, "nshards", opts.NShards, "number of cache shards")
	fs.IntVar(&opts.LoadFactor, "loadfactor", opts.LoadFactor, "Robin-Hood table grow threshold percent, 55-95")
	fs.BoolVar(&opts.UseCAS, "usecas", opts.UseCAS, "track a CAS counter on every entry")
	fs.BoolVar(&opts.NoSixpack, "nosixpack", opts.NoSixpack, "disable 6-bit key compression")
	fs.BoolVar(&opts.NoEvict, "noevict", opts.NoEvict, "disable 2-random eviction under memory pressure")
	fs.BoolVar(&opts.AllowShrink, "allowshrink", opts.AllowShrink, "allow shard tables to shrink once sparse")
	fs.IntVar(&opts.MaxConns, "maxconns", opts.MaxConns, "maximum concurrent connections accepted")
	fs.Int64Var(&opts.MaxMemory, "maxmemory", opts.MaxMemory, "RSS byte threshold that flips the lowmem eviction flag, 0 disables the sampler")
	fs.Uint64Var(&opts.Seed, "seed", opts.Seed, "hash seed, 0 picks a random one")
	fs.StringVar(&opts.SavePath, "save-path", opts.SavePath, "snapshot file to load at boot and save on SIGTERM")
}

// parseFlags builds options from defaults, an optional --config YAML file,
// then command-line flags, in that precedence order (flags win): a first
// pass discovers --config alone, then the YAML file (if any) seeds opts
// before the full flag set is registered and parsed against it.
func parseFlags(args []string) (*options, error) {
	opts := defaultOptions()

	peek := pflag.NewFlagSet("pogocached-peek", pflag.ContinueOnError)
	peek.ParseErrorsWhitelist.UnknownFlags = true
	peek.StringVar(&opts.Config, "config", "", "")
	if err := peek.Parse(args); err != nil {
		return nil, err
	}
	if opts.Config != "" {
		if err := loadYAMLConfig(opts.Config, opts); err != nil {
			return nil, err
		}
	}

	fs := pflag.NewFlagSet("pogocached", pflag.ContinueOnError)
	registerFlags(fs, opts)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func loadYAMLConfig(path string, opts *options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, opts)
}
