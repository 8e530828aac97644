package output

// Default output-contract prompts appended to speaker system instructions.
// Meetings may override these per role via RoleDescriptor.OutputContract.

// RoleContract instructs a discussion role to answer in the RoleOutput JSON
// shape.
const RoleContract = `Respond with a single strict JSON object, no prose outside it, shaped as:
{
  "assumptions": ["..."],
  "proposal": "...",
  "tradeoffs": ["..."],
  "risks": [{"risk": "...", "impact": "...", "mitigation": "...", "verification": "..."}],
  "questions": ["..."],
  "decision_recommendation": "..."
}
If you cannot proceed without information only the user can supply, add
"blocking_questions": [{"key": "...", "ask": "...", "why": "...", "required": true}].`

// RecorderContract instructs the recorder to emit the final artifact bundle.
const RecorderContract = `Produce the final meeting record as a single strict JSON object:
{
  "ADR": {"context": "...", "decision": "...", "alternatives_considered": ["..."],
          "consequences": ["..."], "risks_summary": ["..."],
          "open_questions": ["..."], "next_steps": ["..."]},
  "TASKS": {"tasks": [{"task_id": "T1", "title": "...", "owner_role": "...",
            "priority": "P1", "estimate": "S", "dependencies": []}]},
  "RISKS": {"risks": [{"risk": "...", "impact": "M", "probability": "M",
            "mitigation": "...", "verification": "...", "owner_role": "..."}]}
}`

// SummaryContract instructs the recorder to summarize one round.
const SummaryContract = `Summarize this round as a single strict JSON object:
{"round": N, "summary": "...", "open_questions": ["..."], "decisions": ["..."],
 "risks": ["..."], "next_steps": ["..."]}`

// RepairPrompt frames the single automated repair attempt after a
// validation failure; the concrete problems are appended by the engine.
const RepairPrompt = `Your previous output failed schema validation. Reply again with only the corrected strict JSON object, fixing these problems:`
