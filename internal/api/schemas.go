package api

// Structural checks only: field presence and semantic rules (positive amount,
// date format, stock floor) belong to the ledger service, whose messages are
// surfaced verbatim.
const stockActionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "date": {"type": "string", "maxLength": 10},
    "amount": {"type": ["number", "string"]}
  }
}`
