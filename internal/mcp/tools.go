package mcp

import "github.com/mark3labs/mcp-go/mcp"

var extractToolDef = mcp.NewTool("event_extract",
	mcp.WithDescription("Classify a raw extraction-model response into single, multi or error. "+
		"Malformed input never fails the call; it yields an error result with a reason."),
	mcp.WithString("raw_text",
		mcp.Required(),
		mcp.Description("Raw response text, normally JSON of the form {status, data}")),
	mcp.WithBoolean("save",
		mcp.Description("Store the resulting events (default false)")),
)

var captureToolDef = mcp.NewTool("event_capture",
	mcp.WithDescription("Send a poster image to the extraction service and classify the response."),
	mcp.WithString("image_path",
		mcp.Required(),
		mcp.Description("Path to a local image file")),
	mcp.WithString("mime_type",
		mcp.Description("Image MIME type; detected from the file when omitted")),
	mcp.WithString("language",
		mcp.Description("BCP 47 language for extracted text (default from config)")),
	mcp.WithBoolean("save",
		mcp.Description("Store the resulting events (default false)")),
)

var listToolDef = mcp.NewTool("event_list",
	mcp.WithDescription("List stored events, most recently captured first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithBoolean("favorites_only",
		mcp.Description("Only list favorites")),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset",
		mcp.Description("Items to skip")),
	mcp.WithBoolean("include_deleted",
		mcp.Description("Include soft-deleted events")),
)

var fetchToolDef = mcp.NewTool("event_fetch",
	mcp.WithDescription("Fetch one event with its ticket link."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Event ID")),
	mcp.WithBoolean("include_deleted",
		mcp.Description("Allow fetching a soft-deleted event")),
)

var favoriteToolDef = mcp.NewTool("event_favorite",
	mcp.WithDescription("Mark or unmark an event as favorite. Omitting favorite toggles it."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Event ID")),
	mcp.WithBoolean("favorite",
		mcp.Description("New favorite state")),
)

var deleteToolDef = mcp.NewTool("event_delete",
	mcp.WithDescription("Soft-delete an event. It can be exported with include_deleted until purged."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Event ID")),
)

var purgeToolDef = mcp.NewTool("event_purge",
	mcp.WithDescription("Permanently remove soft-deleted events."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithNumber("older_than_days",
		mcp.Description("Only purge events deleted more than this many days ago")),
)

var exportToolDef = mcp.NewTool("event_export",
	mcp.WithDescription("Export events to a JSONL file (default ~/.cap2cal/exports)."),
	mcp.WithString("path",
		mcp.Description("Destination .jsonl file directly inside an allowed directory")),
	mcp.WithBoolean("favorites_only",
		mcp.Description("Only export favorites")),
	mcp.WithBoolean("include_deleted",
		mcp.Description("Include soft-deleted events")),
)

var importToolDef = mcp.NewTool("event_import",
	mcp.WithDescription("Import events from a JSONL export file."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Source .jsonl file")),
	mcp.WithString("mode",
		mcp.Enum("error", "replace", "rename"),
		mcp.Description("ID collision handling (default error: abort without changes)")),
)

var calendarToolDef = mcp.NewTool("event_calendar",
	mcp.WithDescription("Write events to an iCalendar (.ics) file."),
	mcp.WithArray("ids",
		mcp.WithStringItems(),
		mcp.Description("Events to include (default: all active events)")),
	mcp.WithString("path",
		mcp.Description("Destination .ics file directly inside an allowed directory")),
	mcp.WithBoolean("favorites_only",
		mcp.Description("Only include favorites when ids is omitted")),
)
