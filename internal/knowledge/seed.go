package knowledge

import (
	"context"
	"log"

	"haven/internal/memory"
)

// Seed loads the curated starter corpus. Safe to run repeatedly:
// Ingest skips titles that already exist.
func (b *Base) Seed(ctx context.Context) error {
	for _, item := range defaultItems() {
		if _, err := b.Ingest(ctx, item); err != nil {
			return err
		}
	}
	log.Printf("[Knowledge] Knowledge base initialized")
	return nil
}

func defaultItems() []*Item {
	return []*Item{
		{
			Title: "Understanding Anxiety Disorders",
			Content: `Anxiety disorders are among the most common mental health conditions. They involve excessive fear or worry that interferes with daily activities. Common types include:

1. Generalized Anxiety Disorder (GAD): Persistent worry about various aspects of life
2. Panic Disorder: Recurring panic attacks with intense fear
3. Social Anxiety Disorder: Fear of social situations and judgment
4. Specific Phobias: Intense fear of specific objects or situations

Symptoms may include:
- Racing heart, sweating, trembling
- Difficulty concentrating
- Sleep problems
- Avoiding feared situations
- Muscle tension and fatigue

Treatment options include therapy (especially CBT), medication, and lifestyle changes like exercise and stress management.`,
			Kind:                KindInformation,
			Topics:              memory.EncodeList([]string{"anxiety", "disorders", "symptoms", "treatment"}),
			TargetConditions:    memory.EncodeList([]string{"anxiety", "generalized_anxiety", "panic_disorder"}),
			Source:              "Mental Health Professional Guidelines",
			EvidenceBased:       true,
			EffectivenessRating: 8.5,
		},
		{
			Title: "Deep Breathing for Anxiety Relief",
			Content: `Deep breathing is a simple but effective technique for managing anxiety:

**4-7-8 Breathing Technique:**
1. Exhale completely through your mouth
2. Close your mouth and inhale through nose for 4 counts
3. Hold your breath for 7 counts
4. Exhale through mouth for 8 counts
5. Repeat 3-4 times

**Box Breathing:**
1. Inhale for 4 counts
2. Hold for 4 counts
3. Exhale for 4 counts
4. Hold empty for 4 counts
5. Repeat 4-6 times

Benefits:
- Activates parasympathetic nervous system
- Reduces stress hormones
- Lowers heart rate and blood pressure
- Can be done anywhere, anytime

Practice regularly for best results, even when not anxious.`,
			Kind:                KindTechnique,
			Topics:              memory.EncodeList([]string{"breathing", "anxiety", "coping", "relaxation"}),
			TargetConditions:    memory.EncodeList([]string{"anxiety", "stress", "panic"}),
			Source:              "Evidence-Based Anxiety Treatment",
			EvidenceBased:       true,
			EffectivenessRating: 9.0,
		},
		{
			Title: "Grounding Techniques for Crisis",
			Content: `Grounding techniques help manage overwhelming emotions and anxiety:

**5-4-3-2-1 Technique:**
- 5 things you can see
- 4 things you can touch
- 3 things you can hear
- 2 things you can smell
- 1 thing you can taste

**Physical Grounding:**
- Hold an ice cube
- Splash cold water on face
- Do jumping jacks
- Progressive muscle relaxation

**Mental Grounding:**
- Count backwards from 100 by 7s
- Name animals A-Z
- Describe your surroundings in detail
- Recite a poem or song lyrics

**Emotional Grounding:**
- Say kind statements to yourself
- Think of people you care about
- Remember you are safe right now
- Use self-compassionate language

These techniques redirect focus from distressing thoughts to present moment awareness.`,
			Kind:                KindTechnique,
			Topics:              memory.EncodeList([]string{"grounding", "crisis", "coping", "mindfulness"}),
			TargetConditions:    memory.EncodeList([]string{"anxiety", "ptsd", "panic", "dissociation"}),
			Source:              "Trauma-Informed Care Guidelines",
			EvidenceBased:       true,
			EffectivenessRating: 8.8,
		},
		{
			Title: "Understanding Depression",
			Content: `Depression is a mood disorder that causes persistent feelings of sadness and loss of interest. It affects how you feel, think, and behave.

**Major Symptoms:**
- Persistent sad, anxious, or empty mood
- Loss of interest in activities once enjoyed
- Significant weight loss or gain
- Sleep disturbances (insomnia or oversleeping)
- Fatigue or loss of energy
- Feelings of worthlessness or guilt
- Difficulty concentrating
- Thoughts of death or suicide

**Types of Depression:**
- Major Depressive Disorder
- Persistent Depressive Disorder (Dysthymia)
- Bipolar Disorder
- Seasonal Affective Disorder
- Postpartum Depression

**Treatment Approaches:**
- Psychotherapy (CBT, IPT, DBT)
- Medication (antidepressants)
- Lifestyle changes (exercise, diet, sleep)
- Support groups
- Light therapy (for seasonal depression)

Recovery is possible with proper treatment and support.`,
			Kind:                KindInformation,
			Topics:              memory.EncodeList([]string{"depression", "symptoms", "treatment", "types"}),
			TargetConditions:    memory.EncodeList([]string{"depression", "major_depression", "dysthymia"}),
			Source:              "American Psychological Association",
			EvidenceBased:       true,
			EffectivenessRating: 8.7,
		},
		{
			Title: "Crisis Resources and Emergency Contacts",
			Content: `If you're experiencing a mental health crisis, immediate help is available:

**Emergency Services:**
- Call 911 for immediate danger
- Go to nearest emergency room
- Call local crisis intervention team

**24/7 Crisis Hotlines:**
- National Suicide Prevention Lifeline: 988
- Crisis Text Line: Text HOME to 741741
- NAMI Helpline: 1-800-950-NAMI (6264)
- SAMHSA National Helpline: 1-800-662-4357

**Online Resources:**
- Crisis Chat: suicidepreventionlifeline.org
- NAMI.org for mental health information
- MentalHealth.gov for resources

**Signs You Need Immediate Help:**
- Thoughts of suicide or self-harm
- Plans to hurt yourself or others
- Severe depression with hopelessness
- Psychotic symptoms (hallucinations, delusions)
- Extreme agitation or violence

**Safety Planning:**
- Remove access to lethal means
- Contact emergency services
- Reach out to trusted friends/family
- Go to safe environment
- Use coping skills while seeking help

Remember: Crisis is temporary, help is available, and recovery is possible.`,
			Kind:                KindCrisisResponse,
			Topics:              memory.EncodeList([]string{"crisis", "emergency", "suicide", "resources", "safety"}),
			TargetConditions:    memory.EncodeList([]string{"crisis", "suicide", "emergency"}),
			Source:              "National Crisis Prevention Guidelines",
			EvidenceBased:       true,
			EffectivenessRating: 10.0,
		},
		{
			Title: "Mindfulness and Meditation for Mental Health",
			Content: `Mindfulness is the practice of paying attention to the present moment without judgment.

**Benefits for Mental Health:**
- Reduces anxiety and depression symptoms
- Improves emotional regulation
- Increases self-awareness
- Reduces rumination and worry
- Improves focus and concentration

**Mindful Breathing:**
1. Sit comfortably with eyes closed
2. Focus on your breath
3. Notice inhales and exhales
4. When mind wanders, gently return to breath
5. Start with 5 minutes, gradually increase

**Body Scan:**
1. Lie down comfortably
2. Starting with toes, notice sensations
3. Slowly move attention up through body
4. Don't try to change anything, just notice
5. Complete scan from head to toe

**Mindful Walking:**
1. Walk slowly and deliberately
2. Notice each step and foot placement
3. Pay attention to sensations of walking
4. If mind wanders, return to walking

**Daily Mindfulness:**
- Mindful eating (taste, texture, smell)
- Mindful listening (really hear sounds)
- Mindful observation (colors, shapes, details)

Regular practice increases benefits over time.`,
			Kind:                KindTechnique,
			Topics:              memory.EncodeList([]string{"mindfulness", "meditation", "anxiety", "depression", "stress"}),
			TargetConditions:    memory.EncodeList([]string{"anxiety", "depression", "stress", "adhd"}),
			Source:              "Mindfulness-Based Stress Reduction Research",
			EvidenceBased:       true,
			EffectivenessRating: 8.9,
		},
	}
}
