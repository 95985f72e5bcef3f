package native

import "sync"

// Process-wide string properties backed by encoded buffers. The runtime
// stores each value as an owned byte buffer; setting a property frees the
// previous buffer before installing the replacement. The allocation count is
// observable so tests can verify the free-before-replace discipline.

type textBuf struct {
	data []byte
}

var cfgBufs = struct {
	mu          sync.Mutex
	programName *textBuf
	home        *textBuf
	modulePath  *textBuf
	allocated   int
}{}

func encodeBuf(s string) *textBuf {
	cfgBufs.allocated++
	return &textBuf{data: []byte(s)}
}

func freeBuf(b *textBuf) {
	if b == nil {
		return
	}
	cfgBufs.allocated--
	b.data = nil
}

func decodeBuf(b *textBuf) string {
	if b == nil {
		return ""
	}
	return string(b.data)
}

func setBuf(slot **textBuf, value string) {
	cfgBufs.mu.Lock()
	defer cfgBufs.mu.Unlock()
	freeBuf(*slot)
	*slot = encodeBuf(value)
}

func getBuf(slot **textBuf) string {
	cfgBufs.mu.Lock()
	defer cfgBufs.mu.Unlock()
	return decodeBuf(*slot)
}

// ProgramName returns the configured program name.
func ProgramName() string { return getBuf(&cfgBufs.programName) }

// SetProgramName replaces the program name, freeing the previous buffer.
func SetProgramName(name string) { setBuf(&cfgBufs.programName, name) }

// Home returns the configured runtime home path.
func Home() string { return getBuf(&cfgBufs.home) }

// SetHome replaces the runtime home path, freeing the previous buffer.
func SetHome(home string) { setBuf(&cfgBufs.home, home) }

// ModuleSearchPath returns the configured module search path.
func ModuleSearchPath() string { return getBuf(&cfgBufs.modulePath) }

// SetModuleSearchPath replaces the module search path, freeing the previous
// buffer.
func SetModuleSearchPath(path string) { setBuf(&cfgBufs.modulePath, path) }

// AllocatedBuffers reports the number of live encoded buffers.
func AllocatedBuffers() int {
	cfgBufs.mu.Lock()
	defer cfgBufs.mu.Unlock()
	return cfgBufs.allocated
}

func resetConfigBuffers() {
	cfgBufs.mu.Lock()
	defer cfgBufs.mu.Unlock()
	freeBuf(cfgBufs.programName)
	freeBuf(cfgBufs.home)
	freeBuf(cfgBufs.modulePath)
	cfgBufs.programName, cfgBufs.home, cfgBufs.modulePath = nil, nil, nil
}
