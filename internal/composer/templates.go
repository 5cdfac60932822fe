package composer

// fallbackLine is the response of last resort. Every failure path in
// the composer lands here so the caller always receives something
// supportive.
const fallbackLine = "I'm here to listen and support you. How can I help you today?"

var crisisTemplates = []string{
	`I'm really concerned about what you're sharing with me. Your safety is the most important thing right now.

**IMMEDIATE HELP:**
- National Suicide Prevention Lifeline: **988**
- Crisis Text Line: **Text HOME to 741741**
- Emergency Services: **911**

Please know that you're not alone. There are people who want to help you through this difficult time. Would you be willing to reach out to one of these resources right now?`,

	`Thank you for trusting me with how you're feeling. I want you to know that what you're experiencing right now doesn't have to be permanent, and there is help available.

**YOU MATTER** - Your life has value and meaning.

**Immediate Support:**
- Call 988 for the Suicide & Crisis Lifeline
- Text "HELLO" to 741741 for Crisis Text Line
- Go to your nearest emergency room

Can you tell me if you have someone close by who could stay with you right now?`,

	`I hear that you're in a lot of pain right now, and I'm glad you reached out. That takes courage.

**Right now, let's focus on keeping you safe:**

1. **Call 988** - They have trained counselors available 24/7
2. **Remove any means of harm** from your immediate area
3. **Reach out to a trusted friend or family member**
4. **Consider going to your nearest emergency room**

You deserve support and care. Are you somewhere safe right now?`,
}

var supportiveTemplates = []string{
	`I hear you, and I want you to know that it's completely normal to feel this way sometimes. Mental health struggles are real, but they're also treatable.

Here are some things that might help:
- **Grounding technique**: Name 5 things you can see, 4 you can touch, 3 you can hear, 2 you can smell, 1 you can taste
- **Deep breathing**: Try the 4-7-8 technique (inhale 4, hold 7, exhale 8)
- **Reach out**: Connect with someone you trust

What's one small thing you could do for yourself today?`,

	`Thank you for sharing that with me. It takes strength to talk about difficult feelings.

**Remember:**
- Feelings are temporary - they will pass
- You've overcome challenges before
- Small steps count as progress
- You don't have to face this alone

**Helpful strategies:**
- Take a warm shower or bath
- Listen to calming music
- Write down your thoughts
- Take a short walk outside

Is there a coping strategy that has helped you before?`,

	`I'm here to listen and support you. What you're going through is valid, and seeking help shows real courage.

**Some gentle reminders:**
- Progress isn't always linear
- It's okay to have difficult days
- You deserve compassion, especially from yourself
- There are people who care about you

**Quick mood boosters:**
- Call or text a friend
- Watch something funny
- Do a small act of kindness
- Practice gratitude for 3 things

What would feel most helpful for you right now?`,
}

var positiveTemplates = []string{
	"I'm so glad to hear you're feeling better! It's wonderful when we can recognize and appreciate the good moments.",
	"That's fantastic! Celebrating positive moments is really important for our mental health. What's contributing to these good feelings?",
	"I love hearing positive updates! These moments remind us that feelings do change and that there's hope even in difficult times.",
}

var neutralTemplates = []string{
	"Thank you for sharing that with me. How are you feeling overall today?",
	"I'm here to listen. Is there anything specific you'd like to talk about or any way I can support you?",
	"It sounds like you have a lot on your mind. Would you like to explore any of these feelings together?",
}

var copingStrategies = map[string][]string{
	"anxiety": {
		"Try the 5-4-3-2-1 grounding technique: Notice 5 things you see, 4 you can touch, 3 you hear, 2 you smell, 1 you taste.",
		"Practice box breathing: Inhale for 4 counts, hold for 4, exhale for 4, hold for 4. Repeat.",
		"Challenge anxious thoughts: Ask yourself 'Is this thought helpful? Is it based on facts?'",
		"Try progressive muscle relaxation: Tense and release each muscle group for 5 seconds.",
	},
	"depression": {
		"Start with one small task: Make your bed, brush your teeth, or drink a glass of water.",
		"Get some sunlight: Even 10 minutes outside can help boost your mood.",
		"Reach out to one person: Send a text to someone you care about.",
		"Practice self-compassion: Treat yourself with the same kindness you'd show a friend.",
	},
	"stress": {
		"Take breaks: Even 5 minutes away from stressors can help reset your mind.",
		"Prioritize tasks: Make a list and tackle the most important items first.",
		"Practice saying no: It's okay to set boundaries to protect your mental health.",
		"Use positive self-talk: Replace 'I can't handle this' with 'I'll take this one step at a time.'",
	},
	"anger": {
		"Count to 10 slowly before responding to frustrating situations.",
		"Try physical release: Go for a walk, do jumping jacks, or punch a pillow.",
		"Use 'I' statements: Express how you feel without blaming others.",
		"Take a timeout: Remove yourself from the situation until you feel calmer.",
	},
}

// Resource is one help line or support service.
type Resource struct {
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	Description string `json:"description"`
}

// EmergencyResources returns the crisis contact list appended to every
// crisis response.
func EmergencyResources() []Resource {
	return []Resource{
		{Name: "National Suicide Prevention Lifeline", Contact: "988", Description: "24/7 crisis support"},
		{Name: "Crisis Text Line", Contact: "Text HOME to 741741", Description: "Text-based crisis support"},
		{Name: "SAMHSA National Helpline", Contact: "1-800-662-4357", Description: "Mental health and substance abuse"},
		{Name: "Emergency Services", Contact: "911", Description: "Immediate emergency assistance"},
	}
}

// SupportResources returns non-crisis support services.
func SupportResources() []Resource {
	return []Resource{
		{Name: "Psychology Today", Contact: "psychologytoday.com", Description: "Find therapists in your area"},
		{Name: "BetterHelp", Contact: "betterhelp.com", Description: "Online therapy platform"},
		{Name: "NAMI", Contact: "nami.org", Description: "National Alliance on Mental Illness"},
		{Name: "Mental Health America", Contact: "mhanational.org", Description: "Mental health resources and screening"},
	}
}

// SafetyPlanSuggestions returns the building blocks of a personal
// safety plan.
func SafetyPlanSuggestions() []string {
	return []string{
		"Identify your warning signs - What thoughts, feelings, or behaviors indicate you're in crisis?",
		"List your coping strategies - What has helped you feel better in the past?",
		"Identify people you can call for support - Friends, family, or professionals",
		"Remove or restrict access to lethal means during crisis periods",
		"List reasons for living - Things that give your life meaning and purpose",
		"Create a calm environment - Remove stressors when possible",
		"Practice grounding techniques - 5-4-3-2-1 method, deep breathing, etc.",
	}
}
