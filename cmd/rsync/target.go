package main

import "strings"

// targetKind identifies which transport a source/destination argument
// resolves to, following real rsync's own argument grammar.
type targetKind int

const (
	targetLocal targetKind = iota
	targetShell
	targetDaemon
)

// target is one resolved source or destination argument.
type target struct {
	Kind     targetKind
	User     string
	Host     string
	Port     uint16
	Module   string
	Path     string
	RawLocal string
}

// parseTarget classifies spec according to rsync's own three forms:
// a bare local path, "[user@]host:path" (remote shell), or
// "rsync://[user@]host[:port]/module[/path]" (daemon).
func parseTarget(spec string) target {
	if strings.HasPrefix(spec, "rsync://") {
		return parseDaemonURL(spec)
	}

	if idx := strings.Index(spec, ":"); idx > 0 && !strings.Contains(spec[:idx], "/") {
		hostPart := spec[:idx]
		path := spec[idx+1:]
		user, host := splitUserHost(hostPart)
		return target{Kind: targetShell, User: user, Host: host, Path: path}
	}

	return target{Kind: targetLocal, RawLocal: spec}
}

func splitUserHost(hostPart string) (user, host string) {
	if idx := strings.Index(hostPart, "@"); idx >= 0 {
		return hostPart[:idx], hostPart[idx+1:]
	}
	return "", hostPart
}

func parseDaemonURL(spec string) target {
	rest := strings.TrimPrefix(spec, "rsync://")
	var hostPart, modulePath string
	if idx := strings.Index(rest, "/"); idx >= 0 {
		hostPart, modulePath = rest[:idx], rest[idx+1:]
	} else {
		hostPart = rest
	}

	user, hostPort := splitUserHost(hostPart)
	host, port := hostPort, uint16(0)
	if idx := strings.LastIndex(hostPort, ":"); idx >= 0 {
		host = hostPort[:idx]
		port = parsePort(hostPort[idx+1:])
	}

	module, path := modulePath, ""
	if idx := strings.Index(modulePath, "/"); idx >= 0 {
		module, path = modulePath[:idx], modulePath[idx+1:]
	}

	return target{Kind: targetDaemon, User: user, Host: host, Port: port, Module: module, Path: path}
}

func parsePort(s string) uint16 {
	var n uint16
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + uint16(r-'0')
	}
	return n
}
