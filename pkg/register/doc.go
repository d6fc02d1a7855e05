// Package register implements the named configuration registers a node
// exposes over the register-access service.
//
// A register is a typed value with a dot-separated name ("uavcan.node.id",
// "motor.pid.kp"). Mutable registers can be written remotely; persistent
// registers survive restarts through a YAML file. The table answers the
// standard List (name by dense index) and Access (read/write by name)
// requests; pkg/node binds them to RPC servers.
//
// Assignments never change a register's type: a write of a mismatched kind
// is rejected so a remote typo cannot silently reshape configuration.
package register
