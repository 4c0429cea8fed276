package tagger

import "os/exec"

// commandContext is a seam for tests to observe ffmpeg invocations.
var commandContext = exec.CommandContext
