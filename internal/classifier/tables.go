package classifier

// writeCommands is the curated set of head commands that are write-like
// regardless of their arguments (spec §4.C appendix).
var writeCommands = map[string]bool{
	"rm": true, "rmdir": true, "mv": true, "cp": true, "install": true,
	"ln": true, "link": true, "symlink": true, "touch": true, "truncate": true,
	"mkdir": true, "shred": true, "unlink": true, "dd": true,
	"chmod": true, "chown": true, "chgrp": true,
	"kill": true, "killall": true, "pkill": true, "tee": true,
	"sudo": true, "su": true, "doas": true,
	"apt": true, "apt-get": true, "dpkg": true, "yum": true, "dnf": true, "pacman": true,
	"make": true, "cmake": true, "docker": true, "podman": true,
	"systemctl": true, "service": true, "mount": true, "umount": true,
}

// readOnlyAllowlist is consulted only when Config.Extrasafe is set: any
// head command not in this set is treated as write-like even if it would
// otherwise pass the rest of the classifier (spec §4.C).
var readOnlyAllowlist = map[string]bool{
	"ls": true, "find": true, "stat": true, "file": true, "du": true, "df": true,
	"tree": true, "wc": true, "head": true, "tail": true, "cat": true, "less": true,
	"more": true, "grep": true, "rg": true, "ag": true, "awk": true, "sed": true,
	"diff": true, "cmp": true, "md5sum": true, "sha256sum": true, "sha1sum": true,
	"basename": true, "dirname": true, "realpath": true, "readlink": true,
	"pwd": true, "whoami": true, "id": true, "uname": true, "hostname": true,
	"date": true, "env": true, "printenv": true, "echo": true, "which": true,
	"type": true, "true": true, "false": true, "sleep": true,
	"go": true, "cargo": true, "npm": true, "yarn": true, "pip": true, "pip3": true,
	"python": true, "python3": true, "node": true, "jq": true, "yq": true,
	"curl": true, "wget": true, "xargs": true,
}

// writeSubverbs records head commands (brew, the go/cargo build tools, git)
// whose write-classification depends on a sub-verb rather than presence
// alone.
// git's own write classification is the narrow unconditional-subverb set
// here (push/commit/merge/rebase) plus the flag-sensitive reset --hard
// and clean -f forms handled separately in isGitWriting (spec §4.C
// appendix: "git (push|commit|merge|rebase|reset --hard|clean -f)").
var writeSubverbs = map[string][]string{
	"brew":  {"install", "uninstall", "upgrade", "remove"},
	"go":    {"build", "install", "run"},
	"cargo": {"build", "install", "run"},
	"git":   {"push", "commit", "merge", "rebase"},
}

// readSubverbAllowlist narrows pip/npm/yarn/python to a set of sub-verbs
// treated as read-only even though the head command is not universally
// safe (spec §4.C: "narrow allowlist of read sub-verbs"). git is deliberately
// not a member: its general (non-extrasafe) write rule is the narrow
// writeSubverbs/isGitWriting set above, with everything else read-only by
// default — unlike pip/npm/yarn/python, git has no narrow-allowlist gate.
var readSubverbAllowlist = map[string][]string{
	"pip":     {"show", "list", "search", "check", "freeze", "help"},
	"pip3":    {"show", "list", "search", "check", "freeze", "help"},
	"npm":     {"list", "ls", "view", "show", "search", "help"},
	"yarn":    {"list", "why", "help"},
	"python":  {"-c", "-m"},
	"python3": {"-c", "-m"},
}

// gitExtrasafeReadSubverbs is the broader git read sub-verb list, scoped
// to extrasafe-on only (spec §4.C appendix: "git read sub-verbs ... used
// when extrasafe is on"). Outside extrasafe, git's write classification
// never consults this list — only the narrow write-verb set above does.
var gitExtrasafeReadSubverbs = []string{
	"status", "log", "diff", "show", "branch", "rev-parse", "describe",
	"blame", "ls-files", "remote", "fetch",
}

// lastArgTargetCommands take the last positional argument as their
// write target (spec §4.C write-target extraction helpers).
var lastArgTargetCommands = map[string]bool{
	"cp": true, "mv": true, "install": true, "ln": true, "link": true, "symlink": true,
}

// allArgsTargetCommands treat every positional argument as a write target.
var allArgsTargetCommands = map[string]bool{
	"touch": true, "truncate": true, "rm": true, "rmdir": true, "unlink": true,
	"shred": true, "mkdir": true,
}
