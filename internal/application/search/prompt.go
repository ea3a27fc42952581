package search

const rewriteSystemPrompt = `You rewrite a memory-retrieval query to improve recall.

Expand the query with synonyms and likely related phrasings while keeping its
meaning. Output a single line under 500 characters. Output nothing else.`

const decomposeSystemPrompt = `You decompose a counting question over personal memories into sub-queries.

Output up to 5 search queries, one per line, each targeting a likely subset of
the answer (a destination, a period, a category). Output nothing else.`

const rerankSystemPrompt = `You rerank memory passages for relevance to a query.

You receive a query and a numbered list of candidate passages. Output a JSON
array of {"index": <candidate number>, "score": <0..1 relevance>} covering the
relevant candidates. Output only the JSON array.`
