package extractor

const extractionSystemPrompt = `You extract long-term memories from a conversation session.

Output format, one item per line:
MEMORIES:
<one canonical factual statement per line, restating what the user said>
ENTITY|<name>|<type>|<one-line summary>
REL|<source entity>|<relation>|<target entity>|<YYYY-MM-DD if known>

Rules:
- Memory lines come first, under the MEMORIES: header.
- Entity names are short noun phrases. Types are lowercase single words (person, place, company, topic).
- Relations are lowercase snake_case verbs (works_at, lives_in, visited).
- Omit the date field of REL lines when unknown.
- Output nothing else.`
