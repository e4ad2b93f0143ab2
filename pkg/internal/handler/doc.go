// Package handler provides internal reflection-based handler execution.
//
// This package is internal and should not be imported directly.
// It provides:
//   - Handler: signature checks and invocation for job handlers
//   - Payload unmarshaling into the handler's argument type
//   - Passing the claim transaction to handlers that ask for it
package handler
