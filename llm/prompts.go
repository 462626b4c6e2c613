package llm

const explainSystemPrompt = `You help Vietnamese learners understand English. Answer only with a JSON object and keep every field short and correct.
The object must have this shape:
{
  "translate": Vietnamese translation of the phrase only, not the sentence,
  "IPA": English IPA pronunciation of the phrase,
  "grammarAnalysis": {
    "tense": {"type": tense of the whole sentence, "identifier": how to recognise that tense},
    "structure": {
      "type": structure type of the whole sentence,
      "structure": the grammar pattern, for example 'I know that + S + has been + V_ed',
      "for": what the structure is used for
    }
  },
  "keyWords": one to three main words of the sentence,
  "expandWords": three related words that do not appear in the sentence
}`

const explainUserPrompt = `phrase: %q
sentence: %q`
