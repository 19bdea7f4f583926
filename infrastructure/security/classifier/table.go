package classifier

import "github.com/felixgeelhaar/toolgate/domain/command"

var readOnlyCommands = []string{
	"ls", "cat", "bat", "pwd", "echo", "file", "less", "more", "tree", "find",
	"top", "htop", "ps", "df", "du", "free", "uname", "date", "whoami", "which",
	"ping", "ifconfig", "ip", "netstat", "ss", "dig", "wc", "sort", "diff",
	"head", "tail", "grep",
}

var mutateCommands = []string{
	"chmod", "chown", "chgrp", "curl", "wget", "mount", "umount", "systemctl",
	"reboot", "shutdown", "ufw", "iptables", "ssh", "scp", "mv", "cp", "ln",
	"touch", "mkdir", "tee", "kill", "pkill", "killall", "crontab",
}

var destructiveCommands = []string{
	"rm", "rmdir", "dd", "mkfs", "fdisk", "parted", "shred", "wipefs",
	"sudo", "su", "doas",
}

// wrapperCommands run another command named in their arguments.
var wrapperCommands = map[string]bool{
	"xargs": true, "env": true, "nice": true, "nohup": true, "time": true,
	"timeout": true, "watch": true, "exec": true, "command": true,
	"builtin": true, "stdbuf": true, "ionice": true, "sudo": true, "doas": true,
}

// unsafeArguments turn an otherwise read-only command into one that can
// execute programs or write files.
var unsafeArguments = map[string][]string{
	"find": {"-exec", "-execdir", "-ok", "-okdir", "-delete", "-fprint", "-fprint0", "-fprintf", "-fls"},
	"sort": {"-o", "--output"},
	"tree": {"-o"},
}

// dangerousPatterns are command and process substitutions.
var dangerousPatterns = []string{"$(", "`", "<(", ">("}

// DefaultCategories returns a fresh copy of the built-in risk table.
func DefaultCategories() map[string]command.Category {
	table := make(map[string]command.Category, len(readOnlyCommands)+len(mutateCommands)+len(destructiveCommands))
	for _, name := range readOnlyCommands {
		table[name] = command.ReadOnly
	}
	for _, name := range mutateCommands {
		table[name] = command.Mutate
	}
	for _, name := range destructiveCommands {
		table[name] = command.Destructive
	}
	return table
}
