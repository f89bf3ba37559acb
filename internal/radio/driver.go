package radio

import "fmt"

// Kind identifies which backend a Radio was constructed from, the way
// hz.tools/sdr ships one subpackage per vendor SDK (adrv9364, airspyhf,
// hackrf) all satisfying the same Sdr interface. Here the backends live
// in one package as a tagged sum rather than separate subpackages,
// since neither UHD nor SoapySDR headers are reachable in this build
// environment; both stubs exist so callers, config parsing, and daemon
// wiring are already shaped for a real cgo-backed implementation to
// drop in later.
type Kind string

const (
	KindSimulated Kind = "simulated"
	KindUHD       Kind = "uhd"
	KindSoapy     Kind = "soapy"
)

// uhdDriver and soapyDriver are placeholders for cgo bindings to
// libuhd and libSoapySDR respectively. Neither library is linkable in
// this environment; Open returns an error rather than a half-working
// handle.
type uhdDriver struct{}
type soapyDriver struct{}

func (uhdDriver) open(args string) (Radio, error) {
	return nil, fmt.Errorf("radio: uhd backend requires building with libuhd present (args=%q)", args)
}

func (soapyDriver) open(args string) (Radio, error) {
	return nil, fmt.Errorf("radio: soapy backend requires building with libSoapySDR present (args=%q)", args)
}

// Open constructs a Radio for the named backend. args is a
// driver-specific connection string (device serial, SoapySDR device
// args, etc); simulated ignores it.
func Open(kind Kind, args string, sim SimulatedConfig) (Radio, error) {
	switch kind {
	case KindSimulated:
		return NewSimulated(sim), nil
	case KindUHD:
		return uhdDriver{}.open(args)
	case KindSoapy:
		return soapyDriver{}.open(args)
	default:
		return nil, fmt.Errorf("radio: unknown driver kind %q", kind)
	}
}
