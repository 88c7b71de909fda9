// Package component defines the lifecycle interface shared by the parts of a
// lexstream binary and a Registry that starts them in order and stops them in
// reverse.
//
//	reg := component.NewRegistry()
//	_ = reg.Register(stream.NewComponent(mgr))
//	_ = reg.Register(server.NewComponent(srv))
//	if err := reg.StartAll(ctx); err != nil { ... }
//	defer reg.StopAll(context.Background())
package component
