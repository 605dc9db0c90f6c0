package scriptgen

const specImports = `import { test, expect, Page } from '@playwright/test';
`

// The helpers reproduce the browser driver's lookup chains, including
// its exact failure messages, so suite failures classify the same way
// whether a case ran in-process or in the sandbox.
const specHelpers = `
async function fillField(page: Page, name: string, value: string): Promise<void> {
  const candidates = [
    page.locator(` + "`[name=\"${name}\"]`" + `),
    page.locator(` + "`[id=\"${name}\"]`" + `),
    page.locator(` + "`[placeholder*=\"${name}\"]`" + `),
  ];
  for (const candidate of candidates) {
    if (await candidate.count() > 0) {
      await candidate.first().fill(value);
      return;
    }
  }
  throw new Error(` + "`Input '${name}' not found by name, id, or placeholder`" + `);
}

async function clickButton(page: Page, label: string): Promise<void> {
  if (label !== '') {
    const byText = page.getByText(label, { exact: true });
    if (await byText.count() > 0) {
      await byText.first().click();
      return;
    }
  }
  const submit = page.locator('button[type="submit"], input[type="submit"]');
  if (await submit.count() > 0) {
    await submit.first().click();
    return;
  }
  throw new Error(` + "`Button '${label}' not found via text or submit selector`" + `);
}

async function selectOption(page: Page, option: string): Promise<void> {
  const control = page.locator('select').first();
  if (await control.count() === 0) {
    throw new Error(` + "`No select control found for option '${option}'`" + `);
  }
  await control.selectOption({ label: option });
}

async function checkFirstCheckbox(page: Page): Promise<void> {
  const box = page.locator('input[type="checkbox"]').first();
  if (await box.count() === 0) {
    throw new Error('No checkbox found on page');
  }
  await box.check();
}
`

const packageJSONTemplate = `{
  "name": "{{.ProjectName}}",
  "private": true,
  "scripts": {
    "test": "playwright test"
  },
  "devDependencies": {
    "@playwright/test": "^1.52.0"
  }
}
`

const playwrightConfigTemplate = `import { defineConfig } from '@playwright/test';

export default defineConfig({
  testDir: './tests',
  timeout: 30000,
  retries: 0,
  workers: 1,
  reporter: [['list'], ['json', { outputFile: 'report.json' }]],
  use: {
    baseURL: '{{.BaseURL}}',
    headless: true,
    screenshot: 'only-on-failure',
  },
});
`
