// Package toolkit composes the wire-protocol packages (C1-C10) into the
// three top-level flows the CLI binaries drive (C11): recording a stream
// to a DVTool file, replaying one back to a reflector, and transcoding a
// captured stream between vocoder families via AMBEd.
package toolkit

import (
	"fmt"
	"strings"
	"time"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/reflector"
)

// ProtocolKind selects which reflector wire protocol a connection speaks.
type ProtocolKind string

// Supported protocol selections, matching the CLI -p flag's choices.
const (
	ProtocolDExtra     ProtocolKind = "dextra"
	ProtocolDExtraOpen ProtocolKind = "dextraopen"
	ProtocolDPlus      ProtocolKind = "dplus"
	ProtocolAuto       ProtocolKind = "auto"
)

// AutoSelect picks a reflector protocol from the reflector callsign's
// prefix: REF* uses D-Plus, ORF* uses DExtra-Open, everything else uses
// DExtra.
func AutoSelect(reflectorCallsign string) ProtocolKind {
	upper := strings.ToUpper(strings.TrimSpace(reflectorCallsign))
	switch {
	case strings.HasPrefix(upper, "REF"):
		return ProtocolDPlus
	case strings.HasPrefix(upper, "ORF"):
		return ProtocolDExtraOpen
	default:
		return ProtocolDExtra
	}
}

// Resolve turns a ProtocolKind (possibly ProtocolAuto) plus the reflector
// callsign into a concrete selection.
func Resolve(kind ProtocolKind, reflectorCallsign string) ProtocolKind {
	if kind == ProtocolAuto || kind == "" {
		return AutoSelect(reflectorCallsign)
	}
	return kind
}

// ConnectOptions configures a reflector connection independent of which
// protocol ends up driving it.
type ConnectOptions struct {
	Host             string
	Module           dstar.Module
	HandshakeTimeout time.Duration
	WorkerIdleSleep  time.Duration
	Log              *logger.Logger
}

// Connect resolves kind to a concrete Protocol and opens a reflector
// Connection against it.
func Connect(kind ProtocolKind, callsign dstar.Callsign, opts ConnectOptions) (*reflector.Connection, error) {
	var proto reflector.Protocol
	switch kind {
	case ProtocolDExtra:
		proto = reflector.NewDExtra(callsign, opts.Module)
	case ProtocolDExtraOpen:
		proto = reflector.NewDExtraOpen(callsign, opts.Module)
	case ProtocolDPlus:
		proto = reflector.NewDPlus(callsign)
	default:
		return nil, fmt.Errorf("toolkit: unknown protocol %q", kind)
	}

	return reflector.Open(opts.Host, proto, reflector.Options{
		HandshakeTimeout: opts.HandshakeTimeout,
		WorkerIdleSleep:  opts.WorkerIdleSleep,
		Log:              opts.Log,
	})
}
