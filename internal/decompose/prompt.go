package decompose

// routerPrompt classifies a request as direct or agent.
const routerPrompt = `Classify the request:

DIRECT (no tools needed):
- Greetings: "Hi", "Thanks", "How are you?"
- Knowledge: "What is X?", "Explain Y"
- Clarifications about previous responses
- General questions that don't need live data

AGENT (tools needed):
- Current data: "What's the weather?", "Stock price of X"
- Actions: "Send message", "Create event"
- Multi-step: "Search X then do Y"
- Anything requiring external APIs, files, commands or real-time info

Return ONLY a JSON object with this exact structure (no other text):
{"path": "direct|agent", "reasoning": "one short sentence"}`

// routerContextPrompt is prepended to routerPrompt when there is history.
const routerContextPrompt = `Previous conversation:
%s

Use the conversation history to understand follow-up questions (e.g., "How about Tokyo?" after asking about weather).

`

// plannerPrompt asks for an execution graph. %s is the tool list.
const plannerPrompt = `Create an execution plan for the request as a workflow graph.

Available tools:
%s

Design a graph of subtasks using depends_on relationships:

PATTERNS:
- Single task: One subtask with no dependencies
  Example: "What's the weather?" -> one subtask

- Parallel tasks: Multiple subtasks with no dependencies
  Example: "Compare weather in Tokyo and NYC" -> two subtasks, both with depends_on: []

- Sequential chain: Subtasks that depend on previous ones
  Example: "Get weather then send to Telegram" ->
    get_weather (depends_on: [])
    send_message (depends_on: ["get_weather"])

- Fan-out then aggregate: Parallel tasks followed by a combining task
  Example: "Get weather in 3 cities and summarize" ->
    weather_city1, weather_city2, weather_city3 (depends_on: [])
    summarize (depends_on: ["weather_city1", "weather_city2", "weather_city3"])

- Conditional branching (optional): Use the condition field
  Example: "If rainy, find indoor activities" ->
    get_weather (depends_on: [])
    indoor_activities (depends_on: ["get_weather"], condition: "get_weather.result contains 'rain'")
    outdoor_activities (depends_on: ["get_weather"], condition: "get_weather.result contains 'sunny'")

For each subtask provide:
- id: Short identifier (verb_noun format, e.g., "get_weather")
- tools: List of tool names needed (can be empty for synthesis tasks)
- instructions: Clear instructions for the agent
- depends_on: List of subtask IDs this depends on
- condition: (optional) Only run if this condition is true

Keep it simple. Most requests need just ONE subtask.
Only create multiple subtasks when the request genuinely requires it.

Return ONLY a JSON object with this exact structure (no other text):
{"subtasks": [{"id": "...", "tools": [], "instructions": "...", "depends_on": [], "condition": ""}]}`

// plannerContextPrompt is prepended to plannerPrompt when there is history.
const plannerContextPrompt = `Conversation context:
%s

Use the conversation history to understand follow-up requests. For example, "How about Tokyo?" after a weather query means get Tokyo's weather.

`
