package automod

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// MessageRotator picks redirect and welcome messages, varied by time of day
// and rotated so the bot does not repeat itself. All templates take the
// user's display name; welcome templates are posted in the redirect channel.
type MessageRotator struct {
	RedirectChannel string
	Now             func() time.Time
	Rand            *rand.Rand

	lk      sync.Mutex
	history []string
}

const rotatorHistorySize = 10

func NewMessageRotator(redirectChannel string) *MessageRotator {
	return &MessageRotator{
		RedirectChannel: redirectChannel,
		Now:             time.Now,
		Rand:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var baseRedirectTemplates = []string{
	"🐒 @%[1]s, je t'emmène sur %[2]s pour ce genre de discussion ! 😉",
	"🔥 @%[1]s, hop direction %[2]s pour les sujets chauds ! 🌶️",
	"😊 @%[1]s, %[2]s sera parfait pour continuer cette conversation !",
	"🐒 @%[1]s, allez zou ! %[2]s t'attend pour parler de ça ! 😄",
	"🌶️ @%[1]s, ce sujet a sa place sur %[2]s ! On y va ? 😊",
	"🎯 @%[1]s, %[2]s est le bon endroit pour ça ! Je t'y emmène ! 🚀",
}

var baseWelcomeTemplates = []string{
	"🐒 Salut %[1]s ! Tu peux parler librement ici, c'est fait pour ça ! 😊",
	"🔥 Hey %[1]s ! Bienvenue sur %[2]s, ici c'est le bon endroit pour ce genre de discussion ! 😉",
	"🌶️ Coucou %[1]s ! Sur %[2]s on peut aborder tous les sujets, fais-toi plaisir ! 😄",
	"✨ Bienvenue %[1]s ! %[2]s est ton espace de liberté pour ces discussions ! 🎉",
}

// RedirectMessage returns the explanation posted in the monitored channel
// before a user is relocated, avoiding the most recently used templates.
func (r *MessageRotator) RedirectMessage(user string) string {
	r.lk.Lock()
	defer r.lk.Unlock()

	all := append([]string{}, baseRedirectTemplates...)
	all = append(all, timeRedirectTemplates(r.Now().Hour())...)

	available := make([]string, 0, len(all))
	for _, tpl := range all {
		if !r.recentlyUsed(tpl) {
			available = append(available, tpl)
		}
	}
	if len(available) == 0 {
		available = all
		r.history = r.history[:0]
	}

	chosen := available[r.Rand.Intn(len(available))]
	r.history = append(r.history, chosen)
	if len(r.history) > rotatorHistorySize {
		r.history = r.history[1:]
	}
	return fmt.Sprintf(chosen, user, r.RedirectChannel)
}

// WelcomeMessage returns the greeting posted in the redirect channel once
// the user has been moved there.
func (r *MessageRotator) WelcomeMessage(user string) string {
	r.lk.Lock()
	defer r.lk.Unlock()

	all := append([]string{}, baseWelcomeTemplates...)
	all = append(all, timeWelcomeTemplates(r.Now().Hour())...)
	chosen := all[r.Rand.Intn(len(all))]
	return fmt.Sprintf(chosen, user, r.RedirectChannel)
}

func (r *MessageRotator) recentlyUsed(tpl string) bool {
	for _, h := range r.history {
		if h == tpl {
			return true
		}
	}
	return false
}

func timeRedirectTemplates(hour int) []string {
	switch {
	case hour >= 6 && hour < 12:
		return []string{"🌅 @%[1]s, on démarre la journée sur %[2]s pour ça ! ☀️"}
	case hour >= 12 && hour < 18:
		return []string{"🌞 @%[1]s, pause de l'après-midi sur %[2]s pour la suite ! ☕"}
	case hour >= 18 && hour < 22:
		return []string{"🌆 @%[1]s, soirée qui commence bien ! %[2]s pour continuer ! 🍷"}
	default:
		return []string{"🌙 @%[1]s, les nuits sont faites pour ça ! Direction %[2]s ! ✨"}
	}
}

func timeWelcomeTemplates(hour int) []string {
	switch {
	case hour >= 6 && hour < 12:
		return []string{"🌅 Bonjour %[1]s ! %[2]s pour un réveil en douceur ! ☀️"}
	case hour >= 12 && hour < 18:
		return []string{"☀️ %[1]s, %[2]s pour une après-midi détendue ! 🌞"}
	case hour >= 18 && hour < 22:
		return []string{"🌆 Bonsoir %[1]s ! %[2]s pour une soirée décontractée ! 🍷"}
	default:
		return []string{"🌙 Bonsoir %[1]s ! %[2]s pour des nuits étoilées ! ✨"}
	}
}
