package deps

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/veery/veery/fetch"
)

// ToolStatus represents the current state of an external tool.
type ToolStatus string

const (
	StatusNotInstalled ToolStatus = "not_installed"
	StatusInstalled    ToolStatus = "installed"
	StatusDownloading  ToolStatus = "downloading"
)

// Tool is an external executable the application depends on and can
// install on demand.
type Tool struct {
	ID          string
	Name        string
	Description string
	TargetDir   string
	DownloadURL string

	// Check reports whether the tool is usable and which version runs.
	Check func(ctx context.Context) (exists bool, version string, err error)

	// Install downloads the tool into TargetDir, reporting byte counts
	// and transfer speed through the callback.
	Install func(ctx context.Context, progress fetch.ProgressFunc) error
}

// ToolInfo is the status snapshot returned to API clients.
type ToolInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      ToolStatus `json:"status"`
	Version     string     `json:"version,omitempty"`
	Progress    float64    `json:"progress,omitempty"`
	Speed       int64      `json:"speed,omitempty"` // bytes per second
	Error       string     `json:"error,omitempty"`
}

type installState struct {
	progress float64
	speed    int64
}

var (
	registry = make(map[string]*Tool)
	order    []string
	mu       sync.RWMutex

	installing = make(map[string]installState)
	installErr = make(map[string]string)
)

// Register adds a tool to the global registry.
func Register(tool *Tool) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[tool.ID]; !ok {
		order = append(order, tool.ID)
	}
	registry[tool.ID] = tool
}

// Get retrieves a tool by its ID.
func Get(id string) (*Tool, bool) {
	mu.RLock()
	defer mu.RUnlock()
	tool, ok := registry[id]
	return tool, ok
}

// All returns every registered tool in registration order.
func All() []*Tool {
	mu.RLock()
	defer mu.RUnlock()
	tools := make([]*Tool, 0, len(order))
	for _, id := range order {
		tools = append(tools, registry[id])
	}
	return tools
}

// Status checks every registered tool and returns a snapshot per tool.
// A tool with an in-flight install reports as downloading regardless of
// what Check says.
func Status(ctx context.Context) []ToolInfo {
	infos := make([]ToolInfo, 0, len(All()))
	for _, tool := range All() {
		info := ToolInfo{
			ID:          tool.ID,
			Name:        tool.Name,
			Description: tool.Description,
		}

		mu.RLock()
		state, busy := installing[tool.ID]
		lastErr := installErr[tool.ID]
		mu.RUnlock()

		if busy {
			info.Status = StatusDownloading
			info.Progress = state.progress
			info.Speed = state.speed
			infos = append(infos, info)
			continue
		}
		info.Error = lastErr

		exists, version, err := tool.Check(ctx)
		if err != nil {
			info.Status = StatusNotInstalled
			info.Error = err.Error()
		} else if exists {
			info.Status = StatusInstalled
			info.Version = version
		} else {
			info.Status = StatusNotInstalled
		}
		infos = append(infos, info)
	}
	return infos
}

// StartInstall begins installing a tool in the background. It returns
// an error if the tool is unknown or an install is already running.
func StartInstall(ctx context.Context, id string) error {
	tool, ok := Get(id)
	if !ok {
		return fmt.Errorf("unknown tool: %s", id)
	}

	mu.Lock()
	if _, busy := installing[id]; busy {
		mu.Unlock()
		return fmt.Errorf("%s install already in progress", tool.Name)
	}
	installing[id] = installState{}
	delete(installErr, id)
	mu.Unlock()

	go func() {
		err := tool.Install(ctx, func(p fetch.Progress) {
			var pct float64
			if p.Total > 0 {
				pct = float64(p.Downloaded) / float64(p.Total) * 100
			}
			mu.Lock()
			installing[id] = installState{progress: pct, speed: p.Speed}
			mu.Unlock()
		})

		mu.Lock()
		delete(installing, id)
		if err != nil {
			installErr[id] = err.Error()
		}
		mu.Unlock()
	}()

	return nil
}

// Resolve returns the executable path for a tool. The configured path
// wins when set, then the managed install directory, then whatever is
// on PATH. The bare name is returned as a last resort so errors surface
// at spawn time instead of startup.
func Resolve(id, configured string) string {
	if configured != "" {
		return configured
	}
	tool, ok := Get(id)
	if ok {
		installed := installedPath(tool)
		if installed != "" {
			return installed
		}
	}
	if path, err := exec.LookPath(id); err == nil {
		return path
	}
	return id
}
