package message

// Type tags an envelope. The set is open: values outside the known
// constants travel unchanged and fall into the agents' unsupported branch.
type Type string

const (
	TypeRequest           Type = "request"
	TypeResponse          Type = "response"
	TypeError             Type = "error"
	TypeFeedback          Type = "feedback"
	TypeValidationRequest Type = "validation_request"
	TypeValidationResult  Type = "validation_result"
)

var knownTypes = map[Type]struct{}{
	TypeRequest:           {},
	TypeResponse:          {},
	TypeError:             {},
	TypeFeedback:          {},
	TypeValidationRequest: {},
	TypeValidationResult:  {},
}

// IsKnown reports whether t is one of the protocol's message types.
func (t Type) IsKnown() bool {
	_, ok := knownTypes[t]
	return ok
}

func (t Type) String() string {
	return string(t)
}

// AgentName identifies a sender or recipient.
type AgentName string

const (
	AgentUser           AgentName = "user"
	AgentConversational AgentName = "conversational_agent"
	AgentValidation     AgentName = "validation_agent"
	AgentDataFeature    AgentName = "data_feature"
	AgentMaster         AgentName = "master"
)

var knownAgents = map[AgentName]struct{}{
	AgentUser:           {},
	AgentConversational: {},
	AgentValidation:     {},
	AgentDataFeature:    {},
	AgentMaster:         {},
}

// IsKnown reports whether n is one of the built-in agent names.
func (n AgentName) IsKnown() bool {
	_, ok := knownAgents[n]
	return ok
}

func (n AgentName) String() string {
	return string(n)
}

// Context keys carried in Envelope.Context.
const (
	CtxSessionID         = "session_id"
	CtxExtractParams     = "extract_params"
	CtxUseKnowledgeGraph = "use_knowledge_graph"
	CtxValidate          = "validate"
)

// Content keys shared between agents.
const (
	KeyText           = "text"
	KeyError          = "error"
	KeyType           = "type"
	KeyStrategyParams = "strategy_params"
	KeyIsValid        = "is_valid"
	KeyErrors         = "errors"
	KeyWarnings       = "warnings"
	KeySuggestions    = "suggestions"
	KeyKnowledge      = "knowledge_recommendations"
	KeyKnowledgeHints = "knowledge_suggestions"
	KeyVisualization  = "visualization_url"
	KeyQuery          = "query"
)
