package stdmod

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/funvibe/pyrite/internal/bind"
	"github.com/funvibe/pyrite/internal/rt"
)

const testProto = `syntax = "proto3";
package ping;

import "google/protobuf/timestamp.proto";
import "google/protobuf/duration.proto";

message Event {
  string name = 1;
  int32 count = 2;
  repeated string tags = 3;
  google.protobuf.Timestamp at = 4;
  google.protobuf.Duration took = 5;
  Detail detail = 6;
}

message Detail {
  bytes payload = 1;
}

service Pinger {
  rpc Send(Event) returns (Event);
}
`

func rpcModule(t *testing.T, r *rt.Runtime) *bind.Module {
	t.Helper()
	m, err := bind.NewBinder().Assemble(r, RPCModule())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return m
}

func loadTestProto(t *testing.T, r *rt.Runtime, m *bind.Module) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ping.proto")
	if err := os.WriteFile(path, []byte(testProto), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := callStr(t, r, m, "loadProto", path)
	if err != nil {
		t.Fatalf("loadProto: %v", err)
	}
	rt.Decref(out)
}

func TestRPC_EncodeDecodeRoundTrip(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := rpcModule(t, r)
	defer rt.Decref(m.Runtime())
	loadTestProto(t, r, m)

	req := rt.NewDict()
	defer rt.Decref(req)
	set := func(key string, v rt.Object) {
		if err := req.SetString(r, key, v); err != nil {
			t.Fatalf("building request dict: %v", err)
		}
		rt.Decref(v)
	}
	set("name", rt.NewStr("deploy"))
	set("count", rt.NewInt(3))
	tags := rt.NewList(0)
	for _, s := range []string{"alpha", "bravo"} {
		cell := rt.NewStr(s)
		tags.Append(cell)
		rt.Decref(cell)
	}
	set("tags", tags)
	set("at", rt.NewStr("2024-03-15T10:30:00Z"))
	set("took", rt.NewFloat(1.5))
	detail := rt.NewDict()
	payload := rt.NewBytes([]byte{1, 2, 3})
	if err := detail.SetString(r, "payload", payload); err != nil {
		t.Fatal(err)
	}
	rt.Decref(payload)
	set("detail", detail)

	name := rt.NewStr("ping.Event")
	defer rt.Decref(name)
	encoded, err := callFunc(t, r, m, "encode", name, req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	wire, ok := encoded.(*rt.Bytes)
	if !ok {
		t.Fatalf("encode returned %s, want bytes", encoded.Inspect())
	}
	if len(wire.Data) == 0 {
		t.Fatal("encode produced no bytes")
	}

	decoded, err := callFunc(t, r, m, "decode", name, wire)
	rt.Decref(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	defer rt.Decref(decoded)
	dict, ok := decoded.(*rt.Dict)
	if !ok {
		t.Fatalf("decode returned %s, want dict", decoded.Inspect())
	}

	if got := dict.GetString(r, "name"); got == nil || got.(*rt.Str).Value != "deploy" {
		t.Errorf("name = %v, want deploy", got)
	}
	if got := dict.GetString(r, "count"); got == nil {
		t.Error("count missing")
	} else if n, _ := got.(*rt.Int).Int64(); n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	if got := dict.GetString(r, "tags"); got == nil {
		t.Error("tags missing")
	} else if l := got.(*rt.List); l.Len() != 2 || l.Get(1).(*rt.Str).Value != "bravo" {
		t.Errorf("tags = %s", got.Inspect())
	}
	if got := dict.GetString(r, "at"); got == nil || got.(*rt.Str).Value != "2024-03-15T10:30:00Z" {
		t.Errorf("at = %v, want the RFC 3339 form back", got)
	}
	if got := dict.GetString(r, "took"); got == nil || got.(*rt.Float).Value != 1.5 {
		t.Errorf("took = %v, want 1.5", got)
	}
	if got := dict.GetString(r, "detail"); got == nil {
		t.Error("detail missing")
	} else if p := got.(*rt.Dict).GetString(r, "payload"); p == nil || string(p.(*rt.Bytes).Data) != "\x01\x02\x03" {
		t.Errorf("detail payload = %v", p)
	}
}

func TestRPC_EncodeRejectsUnknownField(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := rpcModule(t, r)
	defer rt.Decref(m.Runtime())
	loadTestProto(t, r, m)

	req := rt.NewDict()
	defer rt.Decref(req)
	v := rt.NewStr("x")
	if err := req.SetString(r, "ghost", v); err != nil {
		t.Fatal(err)
	}
	rt.Decref(v)

	name := rt.NewStr("ping.Event")
	defer rt.Decref(name)
	if _, err := callFunc(t, r, m, "encode", name, req); err == nil {
		t.Fatal("encode with unknown field succeeded")
	}
	r.ErrClear()
}

func TestRPC_UnknownMessage(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := rpcModule(t, r)
	defer rt.Decref(m.Runtime())

	req := rt.NewDict()
	defer rt.Decref(req)
	name := rt.NewStr("nosuch.Message")
	defer rt.Decref(name)
	if _, err := callFunc(t, r, m, "encode", name, req); err == nil {
		t.Fatal("encode against unloaded proto succeeded")
	}
	r.ErrClear()
}

func TestRPC_UnknownHandle(t *testing.T) {
	r := rt.New()
	defer r.Close()
	m := rpcModule(t, r)
	defer rt.Decref(m.Runtime())

	_, err := callStr(t, r, m, "close", "no-such-handle")
	if err == nil {
		t.Fatal("close on unknown handle succeeded")
	}
	rpcErr := m.Registry.Exception("RPCError")
	if rpcErr == nil {
		t.Fatal("RPCError not registered")
	}
	if !r.ErrMatches(rpcErr) {
		t.Errorf("pending = %v, want RPCError", r.ErrOccurred())
	}
	r.ErrClear()
}
