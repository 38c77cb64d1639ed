package lexis

import "github.com/gossip-lsp/lexis/protocol"

// buildCapabilities inspects which handlers are registered and returns
// a ServerCapabilities struct that reflects what the server supports.
// Documents are always synced in full: every change is analyzed from
// scratch.
func (s *Server) buildCapabilities() protocol.ServerCapabilities {
	caps := protocol.ServerCapabilities{
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.SyncFull,
		},
	}
	if _, ok := s.handler(protocol.MethodDidSave); ok {
		caps.TextDocumentSync.Save = &protocol.SaveOptions{IncludeText: true}
	}

	_, caps.HoverProvider = s.handler(protocol.MethodHover)
	_, caps.DefinitionProvider = s.handler(protocol.MethodDefinition)
	_, caps.DocumentSymbolProvider = s.handler(protocol.MethodDocumentSymbol)
	_, caps.WorkspaceSymbolProvider = s.handler(protocol.MethodWorkspaceSymbol)
	_, caps.XWorkspaceReferencesProvider = s.handler(protocol.MethodWorkspaceReferences)
	_, caps.XDefinitionProvider = s.handler(protocol.MethodXDefinition)

	return caps
}
