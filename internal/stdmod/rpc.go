package stdmod

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/funvibe/pyrite/internal/bind"
	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// rpcState holds client connections and parsed proto descriptors for one
// module instance.
type rpcState struct {
	conns  map[string]*grpc.ClientConn
	protos map[string]*desc.FileDescriptor
}

// RPCModule declares the gRPC client module: proto loading, dynamic
// invocation, and wire encode/decode.
func RPCModule() *bind.ModuleDef {
	s := &rpcState{
		conns:  make(map[string]*grpc.ClientConn),
		protos: make(map[string]*desc.FileDescriptor),
	}
	return &bind.ModuleDef{
		Name: "rpc",
		Doc:  "Dynamic gRPC access over parsed proto descriptors.",
		Errors: []bind.ExcDef{
			{Name: "RPCError"},
		},
		ErrTable: []meta.ErrCase{
			{Name: "unknown handle", Exception: "RPCError", Message: "unknown connection handle"},
		},
		Functions: []bind.FuncDef{
			{Name: "loadProto", Doc: "loadProto(path) parses a .proto file", Fn: s.loadProto},
			{Name: "connect", Doc: "connect(target) -> handle", Fn: s.connect},
			{Name: "invoke", Doc: "invoke(handle, 'pkg.Service/Method', request dict) -> response dict", Fn: s.invoke},
			{Name: "encode", Doc: "encode(messageName, dict) -> bytes", Fn: s.encode},
			{Name: "decode", Doc: "decode(messageName, bytes) -> dict", Fn: s.decode},
			{Name: "close", Doc: "close(handle)", Fn: s.close},
		},
	}
}

func (s *rpcState) loadProto(path string) error {
	// protoparse resolves file names against import paths, so an absolute
	// path is split into its directory and bare file name.
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	parser := protoparse.Parser{ImportPaths: []string{dir}}
	fds, err := parser.ParseFiles(name)
	if err != nil {
		return fmt.Errorf("parsing proto %s: %w", path, err)
	}
	for _, fd := range fds {
		s.protos[fd.GetName()] = fd
	}
	return nil
}

func (s *rpcState) connect(target string) (string, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", target, err)
	}
	id := uuid.NewString()
	s.conns[id] = conn
	return id, nil
}

func (s *rpcState) close(handle string) error {
	conn, ok := s.conns[handle]
	if !ok {
		return errUnknownHandle
	}
	delete(s.conns, handle)
	return conn.Close()
}

// invoke builds the request message from a dict, performs a unary call
// and marshals the response back to a dict.
func (s *rpcState) invoke(r *rt.Runtime, handle, method string, request rt.Object) (rt.Object, error) {
	conn, ok := s.conns[handle]
	if !ok {
		return nil, errUnknownHandle
	}
	md, err := s.findMethod(method)
	if err != nil {
		return nil, err
	}

	reqMsg := dynamic.NewMessage(md.GetInputType())
	if err := s.fillMessage(r, request, reqMsg); err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	respMsg := dynamic.NewMessage(md.GetOutputType())

	path := method
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if err := conn.Invoke(context.Background(), path, reqMsg, respMsg); err != nil {
		return nil, fmt.Errorf("rpc failed: %w", err)
	}
	return s.messageObject(r, respMsg)
}

func (s *rpcState) encode(r *rt.Runtime, messageName string, data rt.Object) ([]byte, error) {
	md, err := s.findMessage(messageName)
	if err != nil {
		return nil, err
	}
	msg := dynamic.NewMessage(md)
	if err := s.fillMessage(r, data, msg); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", messageName, err)
	}
	return msg.Marshal()
}

func (s *rpcState) decode(r *rt.Runtime, messageName string, data []byte) (rt.Object, error) {
	md, err := s.findMessage(messageName)
	if err != nil {
		return nil, err
	}
	msg := dynamic.NewMessage(md)
	if err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", messageName, err)
	}
	return s.messageObject(r, msg)
}

// findMethod resolves "package.Service/Method" against loaded protos.
func (s *rpcState) findMethod(path string) (*desc.MethodDescriptor, error) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("bad method path %q, want \"package.Service/Method\"", path)
	}
	for _, fd := range s.protos {
		if svc := fd.FindService(parts[0]); svc != nil {
			if m := svc.FindMethodByName(parts[1]); m != nil {
				return m, nil
			}
			return nil, fmt.Errorf("service %s has no method %q", parts[0], parts[1])
		}
	}
	return nil, fmt.Errorf("service %q not found in loaded protos", parts[0])
}

func (s *rpcState) findMessage(name string) (*desc.MessageDescriptor, error) {
	for _, fd := range s.protos {
		if md := fd.FindMessage(name); md != nil {
			return md, nil
		}
	}
	return nil, fmt.Errorf("message %q not found in loaded protos", name)
}

// fillMessage populates a dynamic message from a dict of field name →
// value.
func (s *rpcState) fillMessage(r *rt.Runtime, o rt.Object, msg *dynamic.Message) error {
	dict, ok := o.(*rt.Dict)
	if !ok {
		return fmt.Errorf("request must be a dict, got %s", o.TypeOf().Name)
	}
	var fillErr error
	dict.Range(func(key, value rt.Object) bool {
		name, ok := key.(*rt.Str)
		if !ok {
			fillErr = fmt.Errorf("field names must be strings")
			return false
		}
		fd := msg.GetMessageDescriptor().FindFieldByName(name.Value)
		if fd == nil {
			fillErr = fmt.Errorf("unknown field %q", name.Value)
			return false
		}
		v, err := s.protoValue(r, value, fd)
		if err != nil {
			fillErr = fmt.Errorf("field %q: %w", name.Value, err)
			return false
		}
		if err := msg.TrySetField(fd, v); err != nil {
			fillErr = fmt.Errorf("field %q: %w", name.Value, err)
			return false
		}
		return true
	})
	return fillErr
}

// protoValue converts one runtime value to the Go value the dynamic
// message layer expects for fd.
func (s *rpcState) protoValue(r *rt.Runtime, o rt.Object, fd *desc.FieldDescriptor) (interface{}, error) {
	if fd.IsRepeated() {
		list, ok := o.(*rt.List)
		if !ok {
			return nil, fmt.Errorf("repeated field wants a list")
		}
		out := make([]interface{}, list.Len())
		for i := 0; i < list.Len(); i++ {
			v, err := s.protoScalar(r, list.Get(i), fd)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return s.protoScalar(r, o, fd)
}

func (s *rpcState) protoScalar(r *rt.Runtime, o rt.Object, fd *desc.FieldDescriptor) (interface{}, error) {
	if md := fd.GetMessageType(); md != nil {
		if wk, ok, err := wellKnownMessage(o, md); ok {
			if err != nil {
				return nil, err
			}
			nested := dynamic.NewMessage(md)
			raw, err := proto.Marshal(wk)
			if err != nil {
				return nil, err
			}
			if err := nested.Unmarshal(raw); err != nil {
				return nil, err
			}
			return nested, nil
		}
		nested := dynamic.NewMessage(md)
		if err := s.fillMessage(r, o, nested); err != nil {
			return nil, err
		}
		return nested, nil
	}
	switch v := o.(type) {
	case *rt.Bool:
		return v.Value, nil
	case *rt.Int:
		n, ok := v.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large for proto field")
		}
		return castInt(n, fd), nil
	case *rt.Float:
		if fd.GetType().String() == "TYPE_FLOAT" {
			return float32(v.Value), nil
		}
		return v.Value, nil
	case *rt.Str:
		return v.Value, nil
	case *rt.Bytes:
		return v.Data, nil
	}
	return nil, fmt.Errorf("unsupported value %s", o.TypeOf().Name)
}

// castInt narrows an int64 to the representation the field's wire type
// uses.
func castInt(n int64, fd *desc.FieldDescriptor) interface{} {
	switch fd.GetType().String() {
	case "TYPE_INT32", "TYPE_SINT32", "TYPE_SFIXED32", "TYPE_ENUM":
		return int32(n)
	case "TYPE_UINT32", "TYPE_FIXED32":
		return uint32(n)
	case "TYPE_UINT64", "TYPE_FIXED64":
		return uint64(n)
	case "TYPE_FLOAT":
		return float32(n)
	case "TYPE_DOUBLE":
		return float64(n)
	}
	return n
}

// messageObject converts a dynamic message to an owned dict.
func (s *rpcState) messageObject(r *rt.Runtime, msg *dynamic.Message) (rt.Object, error) {
	out := rt.NewDict()
	for _, fd := range msg.GetMessageDescriptor().GetFields() {
		val := msg.GetField(fd)
		cell, err := s.runtimeValue(r, val, fd)
		if err != nil {
			rt.Decref(out)
			return nil, err
		}
		if err := out.SetString(r, fd.GetName(), cell); err != nil {
			rt.Decref(cell)
			rt.Decref(out)
			return nil, err
		}
		rt.Decref(cell)
	}
	return out, nil
}

func (s *rpcState) runtimeValue(r *rt.Runtime, v interface{}, fd *desc.FieldDescriptor) (rt.Object, error) {
	if fd.IsRepeated() {
		items, ok := v.([]interface{})
		if !ok {
			items = nil
		}
		list := rt.NewList(0)
		for _, it := range items {
			cell, err := s.runtimeScalar(r, it)
			if err != nil {
				rt.Decref(list)
				return nil, err
			}
			list.Append(cell)
			rt.Decref(cell)
		}
		return list, nil
	}
	return s.runtimeScalar(r, v)
}

func (s *rpcState) runtimeScalar(r *rt.Runtime, v interface{}) (rt.Object, error) {
	switch cell := v.(type) {
	case nil:
		return rt.NewRef(rt.None), nil
	case bool:
		return rt.NewBool(cell), nil
	case int32:
		return rt.NewInt(int64(cell)), nil
	case int64:
		return rt.NewInt(cell), nil
	case uint32:
		return rt.NewInt(int64(cell)), nil
	case uint64:
		return rt.NewUint(cell), nil
	case float32:
		return rt.NewFloat(float64(cell)), nil
	case float64:
		return rt.NewFloat(cell), nil
	case string:
		return rt.NewStr(cell), nil
	case []byte:
		return rt.NewBytes(cell), nil
	case *dynamic.Message:
		if o, ok, err := wellKnownObject(cell); ok {
			return o, err
		}
		return s.messageObject(r, cell)
	}
	return nil, fmt.Errorf("unsupported proto value %T", v)
}

// wellKnownMessage maps the well-known wrapper types going out: timestamps
// are RFC 3339 strings, durations are seconds. Everything else falls
// through to plain dict conversion.
func wellKnownMessage(o rt.Object, md *desc.MessageDescriptor) (proto.Message, bool, error) {
	switch md.GetFullyQualifiedName() {
	case "google.protobuf.Timestamp":
		str, ok := o.(*rt.Str)
		if !ok {
			return nil, true, fmt.Errorf("timestamp field wants an RFC 3339 string, got %s", o.TypeOf().Name)
		}
		t, err := time.Parse(time.RFC3339Nano, str.Value)
		if err != nil {
			return nil, true, err
		}
		return timestamppb.New(t), true, nil
	case "google.protobuf.Duration":
		switch v := o.(type) {
		case *rt.Float:
			return durationpb.New(time.Duration(v.Value * float64(time.Second))), true, nil
		case *rt.Int:
			n, ok := v.Int64()
			if !ok {
				return nil, true, fmt.Errorf("duration too large")
			}
			return durationpb.New(time.Duration(n) * time.Second), true, nil
		}
		return nil, true, fmt.Errorf("duration field wants seconds, got %s", o.TypeOf().Name)
	}
	return nil, false, nil
}

// wellKnownObject is the inbound mirror of wellKnownMessage.
func wellKnownObject(msg *dynamic.Message) (rt.Object, bool, error) {
	switch msg.GetMessageDescriptor().GetFullyQualifiedName() {
	case "google.protobuf.Timestamp":
		var ts timestamppb.Timestamp
		if err := reparse(msg, &ts); err != nil {
			return nil, true, err
		}
		return rt.NewStr(ts.AsTime().UTC().Format(time.RFC3339Nano)), true, nil
	case "google.protobuf.Duration":
		var d durationpb.Duration
		if err := reparse(msg, &d); err != nil {
			return nil, true, err
		}
		return rt.NewFloat(d.AsDuration().Seconds()), true, nil
	}
	return nil, false, nil
}

// reparse round-trips a dynamic message through the wire format into a
// concrete generated type.
func reparse(msg *dynamic.Message, dst proto.Message) error {
	raw, err := msg.Marshal()
	if err != nil {
		return err
	}
	return proto.Unmarshal(raw, dst)
}
