package catalog

var publicThreads = []ContentType{ContentPost, ContentComment}

// DefaultRules is the compiled-in fitness community catalog, used when no rule file is configured.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:                  "INAPPROPRIATE_PERSONAL_COMMENTS",
			Name:                "Inappropriate personal comments",
			Description:         "sexualized remarks about another member's body or appearance",
			Category:            CategoryInappropriateContent,
			Severity:            3,
			BaseConfidence:      0.6,
			Patterns:            []string{"send pics", "send me pics", "send nudes"},
			Keywords:            []string{"hottie", "thicc"},
			RegexPatterns:       []string{`\b(sexy|hot|gorgeous|thicc)\s+(body|bod|figure|legs|butt|ass|curves)\b`},
			ContentTypes:        []ContentType{ContentPost, ContentComment, ContentMessage},
			Action:              ActionFlag,
			RequiresHumanReview: true,
		},
		{
			ID:             "UNSOLICITED_PERSONAL_ATTENTION",
			Name:           "Unsolicited personal attention",
			Description:    "soliciting off-platform contact or posting phone numbers in community threads",
			Category:       CategoryPrivacyViolation,
			Severity:       5,
			BaseConfidence: 0.8,
			Patterns:       []string{"dm me", "text me", "call me at", "my number is", "hit me up on", "add me on snap", "whatsapp me"},
			RegexPatterns:  []string{`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`},
			ContentTypes:   publicThreads,
			AuthorRoles:    []AuthorRole{RoleMember},
			Action:         ActionBlock,
			AutoBlock:      true,
		},
		{
			ID:                  "HARASSMENT_BODY_SHAMING",
			Name:                "Body shaming",
			Category:            CategoryHarassment,
			Severity:            4,
			BaseConfidence:      0.7,
			Patterns:            []string{"you're fat", "you are fat", "lose some weight", "too fat to", "disgusting body", "nobody wants to see"},
			Keywords:            []string{"fatso", "lardass", "landwhale"},
			RegexPatterns:       []string{`\b(ugly|fat|gross)\s+(pig|cow|slob)\b`},
			ContentTypes:        []ContentType{ContentPost, ContentComment, ContentMessage},
			Action:              ActionBlock,
			RequiresHumanReview: true,
		},
		{
			ID:             "HARASSMENT_THREATS",
			Name:           "Threats and incitement",
			Category:       CategoryHarassment,
			Severity:       5,
			BaseConfidence: 0.85,
			Patterns:       []string{"i will find you", "kill yourself", "watch your back"},
			Keywords:       []string{"kys"},
			RegexPatterns:  []string{`\bi('?ll| will) (hurt|beat|kill) you\b`},
			Action:         ActionBlock,
			AutoBlock:      true,
		},
		{
			ID:             "ABUSIVE_LANGUAGE",
			Name:           "Abusive language",
			Category:       CategoryHarassment,
			Severity:       3,
			BaseConfidence: 0.5,
			Patterns:       []string{"shut up", "nobody asked"},
			Keywords:       []string{"idiot", "loser", "pathetic", "stupid"},
			ContentTypes:   []ContentType{ContentPost, ContentComment, ContentMessage},
			Action:         ActionFlag,
		},
		{
			ID:             "SPAM_PROMOTION",
			Name:           "Commercial spam",
			Category:       CategorySpam,
			Severity:       2,
			BaseConfidence: 0.5,
			Patterns:       []string{"buy now", "limited offer", "discount code", "click the link", "dm for prices", "use my code"},
			Keywords:       []string{"promo"},
			RegexPatterns: []string{
				`https?://\S+\.(ru|xyz|top|click)\b`,
				`\b(bit\.ly|tinyurl\.com)/\S+`,
			},
			ContentTypes: []ContentType{ContentPost, ContentComment, ContentMessage},
			AuthorRoles:  []AuthorRole{RoleMember, RoleCoach},
			Action:       ActionFlag,
		},
		{
			ID:                  "DANGEROUS_SUPPLEMENT_PROMOTION",
			Name:                "Dangerous supplement or drug promotion",
			Category:            CategoryMisinformation,
			Severity:            4,
			BaseConfidence:      0.7,
			Patterns:            []string{"steroids for sale", "lose 20 pounds in a week", "no diet needed"},
			Keywords:            []string{"sarms", "clenbuterol", "trenbolone", "dnp"},
			Action:              ActionBlock,
			RequiresHumanReview: true,
		},
		{
			ID:                  "EXTREME_DIETING_PROMOTION",
			Name:                "Extreme dieting promotion",
			Description:         "pro-eating-disorder content",
			Category:            CategorySelfHarm,
			Severity:            4,
			BaseConfidence:      0.65,
			Patterns:            []string{"thinspo", "pro ana", "pro-ana", "starve yourself", "purge after", "eat under 500 calories"},
			Keywords:            []string{"thinspiration", "proana"},
			Action:              ActionFlag,
			RequiresHumanReview: true,
		},
		{
			ID:                  "COACH_IMPERSONATION",
			Name:                "Coach or staff impersonation",
			Category:            CategoryImpersonation,
			Severity:            3,
			BaseConfidence:      0.6,
			Patterns:            []string{"certified coach", "official trainer", "verified coach", "staff member"},
			RegexPatterns:       []string{`\b(official|verified)\s+(spotter|staff|admin)\b`},
			ContentTypes:        []ContentType{ContentProfile, ContentPost},
			AuthorRoles:         []AuthorRole{RoleMember},
			Action:              ActionFlag,
			RequiresHumanReview: true,
		},
		{
			ID:             "PERSONAL_INFO_EXPOSURE",
			Name:           "Personal information exposure",
			Category:       CategoryPrivacyViolation,
			Severity:       4,
			BaseConfidence: 0.7,
			Patterns:       []string{"lives at", "home address"},
			RegexPatterns: []string{
				`\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`,
				`\b\d{1,5}\s+\w+\s+(street|st|avenue|ave|road|rd|lane|ln|blvd)\b`,
			},
			ContentTypes:        publicThreads,
			Visibility:          []Visibility{VisibilityPublic},
			Action:              ActionBlock,
			RequiresHumanReview: true,
		},
		{
			ID:             "OFF_TOPIC_POLITICS",
			Name:           "Off-topic political content",
			Category:       CategoryOffTopic,
			Severity:       1,
			BaseConfidence: 0.4,
			Keywords:       []string{"election", "democrats", "republicans", "liberals", "conservatives"},
			ContentTypes:   publicThreads,
			Visibility:     []Visibility{VisibilityPublic},
			Action:         ActionFlag,
		},
	}
}

// MustDefault builds the default catalog, panicking if the compiled-in rules are malformed.
func MustDefault() *Catalog {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}
