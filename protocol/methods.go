package protocol

// LSP method constants.
const (
	// Lifecycle
	MethodInitialize    = "initialize"
	MethodInitialized   = "initialized"
	MethodShutdown      = "shutdown"
	MethodExit          = "exit"
	MethodSetTrace      = "$/setTrace"
	MethodCancelRequest = "$/cancelRequest"

	// Text document sync
	MethodDidOpen   = "textDocument/didOpen"
	MethodDidChange = "textDocument/didChange"
	MethodDidClose  = "textDocument/didClose"
	MethodDidSave   = "textDocument/didSave"

	// Language features
	MethodHover          = "textDocument/hover"
	MethodDefinition     = "textDocument/definition"
	MethodXDefinition    = "textDocument/xdefinition"
	MethodDocumentSymbol = "textDocument/documentSymbol"

	// Workspace
	MethodWorkspaceSymbol        = "workspace/symbol"
	MethodWorkspaceReferences    = "workspace/xreferences"
	MethodDidChangeConfiguration = "workspace/didChangeConfiguration"

	// Server introspection
	MethodStats = "lexis/stats"

	// Client notifications (server -> client)
	MethodPublishDiagnostics = "textDocument/publishDiagnostics"
	MethodLogMessage         = "window/logMessage"

	// Client requests (server -> client), content and cache extensions
	MethodXContent  = "textDocument/xcontent"
	MethodXFiles    = "workspace/xfiles"
	MethodXCacheGet = "xcache/get"
	MethodXCacheSet = "xcache/set"
)
