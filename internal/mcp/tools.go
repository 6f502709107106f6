package mcp

import "github.com/mark3labs/mcp-go/mcp"

// askDocumentsTool defines the ask_documents MCP tool.
var askDocumentsTool = mcp.NewTool("ask_documents",
	mcp.WithDescription("Ask a question about the indexed document library. Answers are grounded in the documents and cite filename and page."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("The question to answer"),
	),
	mcp.WithString("session_id",
		mcp.Description("Session identifier for follow-up questions; reuse it to keep conversational context"),
	),
)

// listFilesTool defines the list_files MCP tool.
var listFilesTool = mcp.NewTool("list_files",
	mcp.WithDescription("List every document in the active library with page counts and upload order."),
)
