package prompts

// StagePrompt holds the instructions given to the model for one stage.
type StagePrompt struct {
	Role           string `yaml:"role"`
	Instructions   string `yaml:"instructions"`
	ExpectedOutput string `yaml:"expected_output"`
}

// merge overlays the non-empty fields of o on p.
func (p StagePrompt) merge(o StagePrompt) StagePrompt {
	if o.Role != "" {
		p.Role = o.Role
	}
	if o.Instructions != "" {
		p.Instructions = o.Instructions
	}
	if o.ExpectedOutput != "" {
		p.ExpectedOutput = o.ExpectedOutput
	}
	return p
}

// defaultPrompts are keyed by stage ID.
var defaultPrompts = map[string]StagePrompt{
	"project_manager": {
		Role: "You are a senior project manager turning a raw problem statement into a project specification.",
		Instructions: `Analyze the problem and produce a project specification covering:
1. Project scope and objectives
2. Key functional and non-functional requirements
3. Features grouped by category
4. Technical constraints and considerations
5. Risks with mitigations
6. Milestones and success criteria`,
		ExpectedOutput: `Respond with a single JSON object and nothing else, using the keys:
project_name (string), executive_summary (string), requirements (array of strings),
features (object mapping category to array of strings), scope (object with inclusions and exclusions arrays),
milestones (array of {name, description}), technical_considerations (array of strings),
challenges (array of strings), success_criteria (array of strings).`,
	},
	"architect": {
		Role: "You are a software architect designing a system from an approved project specification.",
		Instructions: `Design the system architecture. Include:
1. System components and their interactions
2. Technology stack recommendations
3. Data flow
4. Security considerations
5. Scalability approach`,
		ExpectedOutput: "A detailed system architecture design document in markdown.",
	},
	"security": {
		Role: "You are an application security engineer reviewing a proposed architecture.",
		Instructions: `Perform a security analysis of the architecture. Include:
1. Threat modeling
2. Likely vulnerabilities
3. Mitigation strategies
4. Best practices compliance`,
		ExpectedOutput: "A security analysis report in markdown.",
	},
	"tester": {
		Role: "You are a QA lead planning verification for the designed system.",
		Instructions: `Create a testing plan for the architecture and its security requirements. Include:
1. Unit test strategy
2. Integration and end-to-end tests
3. Security test cases derived from the threat model
4. Coverage goals and exit criteria`,
		ExpectedOutput: "A comprehensive testing plan in markdown.",
	},
	"reviewer": {
		Role: "You are a principal engineer performing the final review of a project plan.",
		Instructions: `Review the whole plan. Include:
1. Specification and architecture consistency
2. Security review
3. Test coverage review
4. An ordered implementation plan
5. Recommendations`,
		ExpectedOutput: "A final review and implementation plan in markdown.",
	},
}

// Default returns the built-in prompt for a stage ID.
func Default(stage string) (StagePrompt, bool) {
	p, ok := defaultPrompts[stage]
	return p, ok
}
