package analyzer

import (
	"strings"

	"github.com/seanblong/readmegen/pkg/models"
)

// Category groups framework labels for archetype inference.
type Category int

const (
	CategoryOther Category = iota
	CategoryFrontend
	CategoryServer
	CategoryML
	CategoryData
)

type framework struct {
	fragment string
	label    string
	category Category
}

// frameworks maps package name fragments to a human label.
var frameworks = []framework{
	{"react", "React", CategoryFrontend},
	{"next", "Next.js", CategoryFrontend},
	{"vue", "Vue.js", CategoryFrontend},
	{"nuxt", "Nuxt", CategoryFrontend},
	{"@angular", "Angular", CategoryFrontend},
	{"svelte", "Svelte", CategoryFrontend},

	{"express", "Express.js", CategoryServer},
	{"koa", "Koa", CategoryServer},
	{"fastify", "Fastify", CategoryServer},
	{"@nestjs", "NestJS", CategoryServer},
	{"@hapi", "Hapi", CategoryServer},
	{"flask", "Flask", CategoryServer},
	{"django", "Django", CategoryServer},
	{"fastapi", "FastAPI", CategoryServer},
	{"rails", "Ruby on Rails", CategoryServer},
	{"sinatra", "Sinatra", CategoryServer},

	{"tensorflow", "TensorFlow", CategoryML},
	{"torch", "PyTorch", CategoryML},
	{"sklearn", "scikit-learn", CategoryML},
	{"scikit-learn", "scikit-learn", CategoryML},
	{"keras", "Keras", CategoryML},
	{"transformers", "Transformers", CategoryML},
	{"@tensorflow", "TensorFlow", CategoryML},

	{"pandas", "Pandas", CategoryData},
	{"numpy", "NumPy", CategoryData},
	{"matplotlib", "Matplotlib", CategoryData},
	{"seaborn", "Seaborn", CategoryData},

	{"mongoose", "MongoDB", CategoryOther},
	{"mongodb", "MongoDB", CategoryOther},
	{"pymongo", "MongoDB", CategoryOther},
	{"mongo", "MongoDB", CategoryOther},
	{"sequelize", "Sequelize", CategoryOther},
	{"prisma", "Prisma", CategoryOther},
	{"@prisma", "Prisma", CategoryOther},
	{"sqlalchemy", "SQLAlchemy", CategoryOther},
	{"postgres", "PostgreSQL", CategoryOther},
	{"psycopg2", "PostgreSQL", CategoryOther},
	{"mysql", "MySQL", CategoryOther},
	{"redis", "Redis", CategoryOther},
	{"socket.io", "Socket.IO", CategoryOther},
	{"graphql", "GraphQL", CategoryOther},
	{"redux", "Redux", CategoryOther},
	{"@reduxjs", "Redux", CategoryOther},
	{"tailwindcss", "Tailwind CSS", CategoryOther},
	{"axios", "Axios", CategoryOther},
	{"openai", "OpenAI", CategoryOther},
	{"celery", "Celery", CategoryOther},
	{"nginx", "Nginx", CategoryOther},
	{"rabbitmq", "RabbitMQ", CategoryOther},
	{"node", "Node.js", CategoryOther},
	{"python", "Python", CategoryOther},
	{"typescript", "TypeScript", CategoryOther},
}

// frameworkCategories is keyed by label.
var frameworkCategories = func() map[string]Category {
	m := make(map[string]Category, len(frameworks))
	for _, f := range frameworks {
		if _, ok := m[f.label]; !ok {
			m[f.label] = f.category
		}
	}
	return m
}()

// FrameworkCategory returns the category of a framework label.
func FrameworkCategory(label string) Category {
	return frameworkCategories[label]
}

type feature struct {
	fragment string
	label    string
}

const (
	FeatureAuth           = "Authentication"
	FeatureDatabase       = "Database"
	FeatureAPI            = "API"
	FeatureUpload         = "File Upload"
	FeatureEmail          = "Email"
	FeaturePayments       = "Payments"
	FeatureML             = "Machine Learning"
	FeatureDataProcessing = "Data Processing"
)

// features maps identifier fragments to a human label.
var features = []feature{
	{"login", FeatureAuth},
	{"log_in", FeatureAuth},
	{"logout", FeatureAuth},
	{"signin", FeatureAuth},
	{"sign_in", FeatureAuth},
	{"signup", FeatureAuth},
	{"sign_up", FeatureAuth},
	{"auth", FeatureAuth},
	{"password", FeatureAuth},
	{"jwt", FeatureAuth},
	{"jsonwebtoken", FeatureAuth},
	{"passport", FeatureAuth},
	{"bcrypt", FeatureAuth},

	{"upload", FeatureUpload},
	{"multer", FeatureUpload},

	{"mail", FeatureEmail},

	{"payment", FeaturePayments},
	{"checkout", FeaturePayments},
	{"stripe", FeaturePayments},
	{"invoice", FeaturePayments},
	{"billing", FeaturePayments},

	{"database", FeatureDatabase},
	{"query", FeatureDatabase},
	{"mongoose", FeatureDatabase},
	{"sequelize", FeatureDatabase},
	{"sqlalchemy", FeatureDatabase},
	{"prisma", FeatureDatabase},

	{"predict", FeatureML},
	{"inference", FeatureML},
	{"classif", FeatureML},

	{"dataframe", FeatureDataProcessing},
	{"csv", FeatureDataProcessing},

	{"socket", "Real-time Communication"},
	{"cache", "Caching"},
	{"search", "Search"},
	{"chart", "Data Visualization"},
	{"plot", "Data Visualization"},
	{"notif", "Notifications"},
	{"schedul", "Scheduling"},
	{"cron", "Scheduling"},
}

// matchModule reports whether a module name refers to the package named by fragment.
func matchModule(module, fragment string) bool {
	m := strings.ToLower(strings.TrimSpace(module))
	if m == fragment {
		return true
	}
	for _, sep := range []string{"/", "-", ".", "_"} {
		if strings.HasPrefix(m, fragment+sep) {
			return true
		}
	}
	return false
}

func isRelative(module string) bool {
	return strings.HasPrefix(module, ".") || strings.HasPrefix(module, "/")
}

// frameworksForModule returns the framework labels a module name implies.
func frameworksForModule(module string) []string {
	if isRelative(module) {
		return nil
	}
	var out []string
	for _, f := range frameworks {
		if matchModule(module, f.fragment) {
			out = append(out, f.label)
		}
	}
	return out
}

// featuresForName returns the feature labels an identifier or module name implies.
func featuresForName(name string) []string {
	n := strings.ToLower(name)
	var out []string
	for _, f := range features {
		if strings.Contains(n, f.fragment) {
			out = append(out, f.label)
		}
	}
	return out
}

// detect fills FrameworksDetected and FeaturesDetected from the collected
// imports, functions and classes.
func detect(fa *models.FileAnalysis) {
	frameworks := newOrderedSet(fa.FrameworksDetected...)
	feats := newOrderedSet(fa.FeaturesDetected...)

	for _, imp := range fa.Imports {
		frameworks.add(frameworksForModule(imp.Source)...)
		if !isRelative(imp.Source) {
			feats.add(featuresForName(imp.Source)...)
		}
	}
	for _, fn := range fa.Functions {
		feats.add(featuresForName(fn.Name)...)
	}
	for _, c := range fa.Classes {
		feats.add(featuresForName(c.Name)...)
		for _, m := range c.Methods {
			feats.add(featuresForName(m)...)
		}
	}
	if len(fa.APIRoutes) > 0 {
		feats.add(FeatureAPI)
	}

	fa.FrameworksDetected = frameworks.items
	fa.FeaturesDetected = feats.items
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet(items ...string) *orderedSet {
	s := &orderedSet{seen: make(map[string]bool)}
	s.add(items...)
	return s
}

func (s *orderedSet) add(items ...string) {
	for _, it := range items {
		if it == "" || s.seen[it] {
			continue
		}
		s.seen[it] = true
		s.items = append(s.items, it)
	}
}
