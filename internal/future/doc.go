// Package future provides Future[T], the single-resolution deferred value used
// as the concurrency contract between the scheduler and the commands it runs.
//
// A command returns a *Future immediately and may settle it later from any
// goroutine (a network callback, a timer, another worker). Whoever needs the
// outcome registers continuations:
//
//	f := cmd.Execute(ctx, name, args)
//	f.OnSuccess(func(followOns []command.Descriptor) { ... })
//	f.OnError(func(err error) { ... })
//
// Settlement happens exactly once. Continuations registered before settlement
// run synchronously on the settling goroutine, in registration order.
// Continuations registered after settlement run immediately on the caller's
// goroutine. A rejection with no registered handler is dropped silently.
//
// Then and ThenAsync build derived futures; ResolveWith lets one future adopt
// the outcome of another without double settlement. Await and Done bridge
// futures to blocking code and select statements.
package future
