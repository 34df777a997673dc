package chat

import (
	"fmt"
	"strings"

	"github.com/ashureev/deepcode-chat/internal/archive"
)

// CodeCommand is the chat command that starts code generation.
const CodeCommand = "/code"

const fallbackOverviewLimit = 100

// defaultPipelineInput is sent to the pipeline when no plan was stored.
const defaultPipelineInput = "Generate code based on the technical plan"

// Greeting is the first assistant message of every session.
const Greeting = `👋 Hello! I'm your specialized AI coding assistant. I'm here to help you generate code through an interactive conversation.

Please tell me what kind of project or functionality you'd like to build. The more details you provide, the better I can understand your requirements.

For example, you could describe:
- A web application with specific features
- A machine learning model implementation
- A data processing pipeline
- A mobile app concept
- Any other coding project you have in mind

I'll ask follow-up questions if I need clarification, and then create a technical implementation plan for you. When we're ready, I'll generate the actual code!`

const (
	replyIntroduction = "Thanks for that introduction! Let me ask a few questions to better understand your requirements."
	replyMoreDetail   = "I'd like to understand your requirements better. Could you provide more details about what you're looking to build?"
	replyCodeHint     = "I'm still collecting requirements. When you're ready to generate code based on the plan, please type `/code`."
	replyFollowUp     = "I've generated the code based on your requirements. You can download it using the link provided above. Is there anything else you'd like me to help with?"

	replyPlanUnavailable = "⚠️ The planning engine could not be reached, so this is a generic plan outline rather than one tailored to your requirements."
)

const planHeader = `✅ Thanks for the detailed requirements! I've analyzed what you're looking to build and here's my technical implementation plan:

## Technical Implementation Plan

`

const planFooter = `

When you're ready to generate the actual code based on this plan, simply type ` + "`/code`" + ` and I'll create the implementation for you!`

const fallbackPlanBody = `**Implementation Approach:**
1. **Architecture Design** - Define system components and data flow
2. **Technology Stack** - Select appropriate frameworks and libraries
3. **Core Modules** - Break down functionality into manageable components
4. **API Design** - Define interfaces and data structures
5. **Testing Strategy** - Plan for quality assurance

**File Structure:**
` + "```" + `
project/
├── src/
│   ├── main.py
│   ├── config/
│   ├── utils/
│   └── modules/
├── tests/
├── requirements.txt
└── README.md
` + "```"

const codeGeneratedReply = `🎉 Great! I've generated the code based on your requirements and technical plan.

## What was created:
- A complete project structure with best practices
- Main application file with basic implementation
- Requirements file with necessary dependencies
- README with project documentation

## Download your code:
`

// IsCodeCommand reports whether input asks for code generation.
func IsCodeCommand(input string) bool {
	return strings.ToLower(strings.TrimSpace(input)) == CodeCommand
}

func formatPlan(planText string) string {
	return planHeader + planText + planFooter
}

func fallbackPlan(requirements string) string {
	return planHeader +
		"**Project Overview:**\n" + archive.Truncate(requirements, fallbackOverviewLimit) + "...\n\n" +
		fallbackPlanBody + planFooter
}

func codeErrorReply(err error) string {
	return fmt.Sprintf("❌ Sorry, I encountered an error while generating the code: %v", err)
}
