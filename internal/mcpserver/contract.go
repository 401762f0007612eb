package mcpserver

// ExportFormatContract describes the JSON interchange format accepted by
// import_notes and produced by export_notes.
const ExportFormatContract = `# Bloc Export Format

An export file is a UTF-8 JSON array. Each element is an object:

` + "```" + `json
[
  {
    "id": 1718000000000,
    "title": "2025-06-10 note 1",
    "content": "<p>Rich text as an HTML fragment.</p>",
    "createdAt": "2025-06-10T09:00:00.000Z",
    "lastModified": "2025-06-10T09:05:12.345Z"
  }
]
` + "```" + `

## Rules

1. The top level MUST be an array. Any other JSON value is rejected as an
   invalid format and nothing is imported.
2. Every element MUST be an object. One bad element rejects the whole file.
3. ` + "`id`" + ` is ignored on import. Imported notes get fresh ids above the
   current maximum, in file order.
4. ` + "`title`" + ` defaults to "Imported note" and ` + "`content`" + ` to "" when missing.
5. Timestamps are RFC 3339. A missing ` + "`createdAt`" + ` or ` + "`lastModified`" + `
   becomes the import time; ` + "`lastModified`" + ` is never earlier than ` + "`createdAt`" + `.
6. Importing never replaces or removes existing notes.
`
