package service

import "strings"

// Command is one of the fixed slash commands answered without retrieval.
type Command int

const (
	CommandNone Command = iota
	CommandHelp
	CommandServices
	CommandLocations
	CommandHours
	CommandContact

	commandCount
)

var commandNames = [commandCount]string{
	CommandHelp:      "/help",
	CommandServices:  "/services",
	CommandLocations: "/locations",
	CommandHours:     "/hours",
	CommandContact:   "/contact",
}

var commandResponses = [commandCount]string{
	CommandHelp: "Here's what I can help with:\n" +
		"- Ask any question about our services, pricing or maintenance\n" +
		"- /services lists what we do\n" +
		"- /locations shows where to find us\n" +
		"- /hours shows when we're open\n" +
		"- /contact shows how to reach a service advisor",
	CommandServices: "Our services:\n" +
		"- Oil and filter changes\n" +
		"- Brake inspection and repair\n" +
		"- Tire rotation, balancing and alignment\n" +
		"- Battery testing and replacement\n" +
		"- Engine diagnostics\n" +
		"- Scheduled maintenance",
	CommandLocations: "You can find us at:\n" +
		"- Downtown: 120 Main Street\n" +
		"- Northside: 45 Industrial Avenue\n" +
		"- Airport Road: 9 Airport Road, Unit 3",
	CommandHours: "Opening hours:\n" +
		"- Monday to Friday: 8:00 to 18:00\n" +
		"- Saturday: 9:00 to 14:00\n" +
		"- Sunday: closed",
	CommandContact: "Contact us:\n" +
		"- Phone: (555) 010-4477\n" +
		"- Email: service@example.com\n" +
		"- Or ask me here and a service advisor will follow up",
}

// ParseCommand matches the trimmed, case-folded content against the known
// commands. Anything else, including commands with arguments, is CommandNone.
func ParseCommand(content string) Command {
	c := strings.ToLower(strings.TrimSpace(content))
	for cmd := CommandHelp; cmd < commandCount; cmd++ {
		if commandNames[cmd] == c {
			return cmd
		}
	}
	return CommandNone
}

func (c Command) String() string {
	if c <= CommandNone || c >= commandCount {
		return "none"
	}
	return commandNames[c]
}

// Response returns the canned reply, or "" for CommandNone.
func (c Command) Response() string {
	if c <= CommandNone || c >= commandCount {
		return ""
	}
	return commandResponses[c]
}
